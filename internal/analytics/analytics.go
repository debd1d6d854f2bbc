// Package analytics reduces orders, users, products and coupon redemptions in
// a date range into the dashboard reports. Everything is computed in memory
// from date-ranged fetches; there is no caching or incremental state.
package analytics

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/pricing"
)

const rentalsPageSize = 1000

type Service struct {
	DB *gorm.DB
}

type OrdersReport struct {
	TotalOrders     int                `json:"total_orders"`
	ByStatus        map[string]int     `json:"by_status"`
	CountByMonth    map[string]int     `json:"count_by_month"`
	RevenueByMonth  map[string]float64 `json:"revenue_by_month"`
	ByPaymentMethod map[string]int     `json:"by_payment_method"`
	ByRegion        map[string]int     `json:"by_region"`
	TotalRevenue    float64            `json:"total_revenue"`
}

type UsersReport struct {
	NewUsers       int            `json:"new_users"`
	NewByMonth     map[string]int `json:"new_by_month"`
	DistinctBuyers int            `json:"distinct_buyers"`
}

type ProductStat struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Units     int     `json:"units"`
	Revenue   float64 `json:"revenue"`
}

type ProductsReport struct {
	TopProducts     []ProductStat  `json:"top_products"`
	UnitsByCategory map[string]int `json:"units_by_category"`
}

type CouponStat struct {
	Code          string  `json:"code"`
	Redemptions   int     `json:"redemptions"`
	DiscountTotal float64 `json:"discount_total"`
}

type CouponsReport struct {
	Redemptions   int          `json:"redemptions"`
	DiscountTotal float64      `json:"discount_total"`
	ByCoupon      []CouponStat `json:"by_coupon"`
}

type ShippingStat struct {
	MethodID  uint    `json:"method_id"`
	Name      string  `json:"name"`
	Orders    int     `json:"orders"`
	CostTotal float64 `json:"cost_total"`
}

type ShippingReport struct {
	ByMethod []ShippingStat `json:"by_method"`
}

// KPIReport derivations follow the dashboard conventions: lifetime value is
// AOV x average orders per customer, and churn is the retention complement
// rather than a cohort metric.
type KPIReport struct {
	TotalRevenue          float64 `json:"total_revenue"`
	CompletedOrders       int     `json:"completed_orders"`
	AverageOrderValue     float64 `json:"average_order_value"`
	AvgOrdersPerCustomer  float64 `json:"avg_orders_per_customer"`
	CustomerLifetimeValue float64 `json:"customer_lifetime_value"`
	RetentionRate         float64 `json:"retention_rate"`
	ChurnRate             float64 `json:"churn_rate"`
}

type Report struct {
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Users     UsersReport    `json:"users"`
	Products  ProductsReport `json:"products"`
	Orders    OrdersReport   `json:"orders"`
	Coupons   CouponsReport  `json:"coupons"`
	Shipping  ShippingReport `json:"shipping"`
	KPIs      KPIReport      `json:"kpis"`
}

// Window parses optional YYYY-MM-DD bounds, defaulting to the trailing 30
// days. The end bound is exclusive at the start of the following day.
func Window(startStr, endStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -30)
	end := now

	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t.AddDate(0, 0, 1)
	}
	return start, end, nil
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (s *Service) Advanced(ctx context.Context, start, end time.Time) (*Report, error) {
	report := &Report{StartDate: start, EndDate: end}

	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&orders).Error; err != nil {
		return nil, err
	}

	report.Orders = buildOrdersReport(orders)
	report.KPIs = buildKPIReport(orders)

	users, err := s.buildUsersReport(ctx, start, end, orders)
	if err != nil {
		return nil, err
	}
	report.Users = users

	products, err := s.buildProductsReport(ctx, start, end)
	if err != nil {
		return nil, err
	}
	report.Products = products

	coupons, err := s.buildCouponsReport(ctx, start, end)
	if err != nil {
		return nil, err
	}
	report.Coupons = coupons

	shipping, err := s.buildShippingReport(ctx, orders)
	if err != nil {
		return nil, err
	}
	report.Shipping = shipping

	return report, nil
}

func buildOrdersReport(orders []models.Order) OrdersReport {
	r := OrdersReport{
		ByStatus:        map[string]int{},
		CountByMonth:    map[string]int{},
		RevenueByMonth:  map[string]float64{},
		ByPaymentMethod: map[string]int{},
		ByRegion:        map[string]int{},
	}

	for _, o := range orders {
		r.TotalOrders++
		r.ByStatus[o.Status]++
		month := monthKey(o.CreatedAt)
		r.CountByMonth[month]++
		if o.PaymentMethod != "" {
			r.ByPaymentMethod[o.PaymentMethod]++
		}
		if o.Region != "" {
			r.ByRegion[o.Region]++
		}
		if o.Status == models.OrderStatusCompleted {
			r.RevenueByMonth[month] = pricing.Round2(r.RevenueByMonth[month] + o.Total)
			r.TotalRevenue = pricing.Round2(r.TotalRevenue + o.Total)
		}
	}
	return r
}

func buildKPIReport(orders []models.Order) KPIReport {
	var k KPIReport

	ordersPerCustomer := map[uint]int{}
	for _, o := range orders {
		ordersPerCustomer[o.UserID]++
		if o.Status == models.OrderStatusCompleted {
			k.CompletedOrders++
			k.TotalRevenue = pricing.Round2(k.TotalRevenue + o.Total)
		}
	}

	if k.CompletedOrders > 0 {
		k.AverageOrderValue = pricing.Round2(k.TotalRevenue / float64(k.CompletedOrders))
	}

	distinct := len(ordersPerCustomer)
	if distinct > 0 {
		repeat := 0
		for _, n := range ordersPerCustomer {
			if n > 1 {
				repeat++
			}
		}
		k.AvgOrdersPerCustomer = pricing.Round2(float64(len(orders)) / float64(distinct))
		k.CustomerLifetimeValue = pricing.Round2(k.AverageOrderValue * k.AvgOrdersPerCustomer)
		k.RetentionRate = pricing.Round2(float64(repeat) / float64(distinct) * 100)
		k.ChurnRate = pricing.Round2(100 - k.RetentionRate)
	}
	return k
}

func (s *Service) buildUsersReport(ctx context.Context, start, end time.Time, orders []models.Order) (UsersReport, error) {
	r := UsersReport{NewByMonth: map[string]int{}}

	var users []models.User
	if err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&users).Error; err != nil {
		return r, err
	}
	r.NewUsers = len(users)
	for _, u := range users {
		r.NewByMonth[monthKey(u.CreatedAt)]++
	}

	buyers := map[uint]struct{}{}
	for _, o := range orders {
		buyers[o.UserID] = struct{}{}
	}
	r.DistinctBuyers = len(buyers)
	return r, nil
}

func (s *Service) buildProductsReport(ctx context.Context, start, end time.Time) (ProductsReport, error) {
	r := ProductsReport{TopProducts: []ProductStat{}, UnitsByCategory: map[string]int{}}

	type row struct {
		ProductID uint
		Quantity  uint
		LineTotal float64
		NumDays   int
	}
	var rows []row
	if err := s.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Select("order_items.product_id, order_items.quantity, order_items.line_total, orders.num_days").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.created_at >= ? AND orders.created_at < ?", start, end).
		Scan(&rows).Error; err != nil {
		return r, err
	}
	if len(rows) == 0 {
		return r, nil
	}

	byProduct := map[uint]*ProductStat{}
	for _, it := range rows {
		stat, ok := byProduct[it.ProductID]
		if !ok {
			stat = &ProductStat{ProductID: it.ProductID}
			byProduct[it.ProductID] = stat
		}
		stat.Units += int(it.Quantity)
		days := it.NumDays
		if days < 1 {
			days = 1
		}
		stat.Revenue = pricing.Round2(stat.Revenue + pricing.Round2(it.LineTotal*float64(days)))
	}

	ids := make([]uint, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	var products []models.Product
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return r, err
	}

	categoryNames := map[uint]string{}
	var categories []models.Category
	if err := s.DB.WithContext(ctx).Find(&categories).Error; err != nil {
		return r, err
	}
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	for _, p := range products {
		if stat, ok := byProduct[p.ID]; ok {
			stat.Name = p.Name
			category := "uncategorized"
			if p.CategoryID != nil {
				if name, ok := categoryNames[*p.CategoryID]; ok {
					category = name
				}
			}
			r.UnitsByCategory[category] += stat.Units
		}
	}

	for _, stat := range byProduct {
		r.TopProducts = append(r.TopProducts, *stat)
	}
	sort.Slice(r.TopProducts, func(i, j int) bool {
		if r.TopProducts[i].Units != r.TopProducts[j].Units {
			return r.TopProducts[i].Units > r.TopProducts[j].Units
		}
		return r.TopProducts[i].ProductID < r.TopProducts[j].ProductID
	})
	return r, nil
}

func (s *Service) buildCouponsReport(ctx context.Context, start, end time.Time) (CouponsReport, error) {
	r := CouponsReport{ByCoupon: []CouponStat{}}

	type row struct {
		Code   string
		Amount float64
	}
	var rows []row
	if err := s.DB.WithContext(ctx).Model(&models.CouponRedemption{}).
		Select("coupons.code, coupon_redemptions.amount").
		Joins("JOIN coupons ON coupons.id = coupon_redemptions.coupon_id").
		Where("coupon_redemptions.created_at >= ? AND coupon_redemptions.created_at < ?", start, end).
		Scan(&rows).Error; err != nil {
		return r, err
	}

	byCode := map[string]*CouponStat{}
	for _, rr := range rows {
		stat, ok := byCode[rr.Code]
		if !ok {
			stat = &CouponStat{Code: rr.Code}
			byCode[rr.Code] = stat
		}
		stat.Redemptions++
		stat.DiscountTotal = pricing.Round2(stat.DiscountTotal + rr.Amount)
		r.Redemptions++
		r.DiscountTotal = pricing.Round2(r.DiscountTotal + rr.Amount)
	}
	for _, stat := range byCode {
		r.ByCoupon = append(r.ByCoupon, *stat)
	}
	sort.Slice(r.ByCoupon, func(i, j int) bool { return r.ByCoupon[i].Redemptions > r.ByCoupon[j].Redemptions })
	return r, nil
}

func (s *Service) buildShippingReport(ctx context.Context, orders []models.Order) (ShippingReport, error) {
	r := ShippingReport{ByMethod: []ShippingStat{}}

	byMethod := map[uint]*ShippingStat{}
	for _, o := range orders {
		if o.ShippingMethodID == nil {
			continue
		}
		stat, ok := byMethod[*o.ShippingMethodID]
		if !ok {
			stat = &ShippingStat{MethodID: *o.ShippingMethodID}
			byMethod[*o.ShippingMethodID] = stat
		}
		stat.Orders++
		stat.CostTotal = pricing.Round2(stat.CostTotal + o.ShippingTotal)
	}
	if len(byMethod) == 0 {
		return r, nil
	}

	ids := make([]uint, 0, len(byMethod))
	for id := range byMethod {
		ids = append(ids, id)
	}
	var methods []models.ShippingMethod
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&methods).Error; err != nil {
		return r, err
	}
	for _, m := range methods {
		if stat, ok := byMethod[m.ID]; ok {
			stat.Name = m.Name
		}
	}
	for _, stat := range byMethod {
		r.ByMethod = append(r.ByMethod, *stat)
	}
	sort.Slice(r.ByMethod, func(i, j int) bool { return r.ByMethod[i].Orders > r.ByMethod[j].Orders })
	return r, nil
}

type ProductRentalsReport struct {
	ProductID uint           `json:"product_id"`
	Orders    int            `json:"orders"`
	Units     int            `json:"units"`
	Revenue   float64        `json:"revenue"`
	ByMonth   map[string]int `json:"by_month"`
}

// ProductRentals scans a product's order lines in the range, paging 1000 rows
// at a time until exhausted.
func (s *Service) ProductRentals(ctx context.Context, productID uint, start, end time.Time) (*ProductRentalsReport, error) {
	report := &ProductRentalsReport{ProductID: productID, ByMonth: map[string]int{}}

	type row struct {
		Quantity  uint
		LineTotal float64
		NumDays   int
		CreatedAt time.Time
	}

	for offset := 0; ; offset += rentalsPageSize {
		var rows []row
		if err := s.DB.WithContext(ctx).Model(&models.OrderItem{}).
			Select("order_items.quantity, order_items.line_total, orders.num_days, orders.created_at").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("order_items.product_id = ? AND orders.created_at >= ? AND orders.created_at < ?", productID, start, end).
			Order("order_items.id ASC").
			Limit(rentalsPageSize).
			Offset(offset).
			Scan(&rows).Error; err != nil {
			return nil, err
		}

		for _, it := range rows {
			report.Orders++
			report.Units += int(it.Quantity)
			days := it.NumDays
			if days < 1 {
				days = 1
			}
			report.Revenue = pricing.Round2(report.Revenue + pricing.Round2(it.LineTotal*float64(days)))
			report.ByMonth[monthKey(it.CreatedAt)]++
		}

		if len(rows) < rentalsPageSize {
			break
		}
	}
	return report, nil
}
