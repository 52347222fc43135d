package core

import (
	"time"

	"github.com/rushteam/shoprec/pkg/utils"
)

// 商品状态与订单状态
const (
	ProductStatusActive = "active"

	OrderStatusDelivered        = "delivered"
	OrderStatusPaymentCompleted = "payment_completed"
)

// IsCompletedOrderStatus 判断订单是否计入推荐（已送达 / 已支付）。
func IsCompletedOrderStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusPaymentCompleted
}

// ProductRef 是推荐链路读取到的商品记录。
// 只有 Status 为 active 的商品可以被推荐。
type ProductRef struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Tags        []string  `json:"tags,omitempty"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	UnitsSold   int64     `json:"units_sold"`
	ReviewCount int64     `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive 返回商品是否可推荐。
func (p *ProductRef) IsActive() bool {
	return p != nil && p.Status == ProductStatusActive
}

// InteractionRecord 是一条已完成订单中的商品行，订单完成后不可变。
type InteractionRecord struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	ProductID      string    `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	OrderTimestamp time.Time `json:"order_timestamp"`
	OrderStatus    string    `json:"order_status"`
}

// ScoredProduct 是推荐结果中的单个商品：商品属性 + 推荐分 + 解释标签。
// Labels 记录该商品来自哪些召回列表，便于 explain / 观测。
type ScoredProduct struct {
	ProductRef
	RecommendationScore float64                `json:"recommendation_score"`
	Labels              map[string]utils.Label `json:"labels,omitempty"`
}

// NewScoredProduct 基于商品记录创建一个带分数的推荐项。
func NewScoredProduct(p ProductRef, score float64) *ScoredProduct {
	return &ScoredProduct{
		ProductRef:          p,
		RecommendationScore: score,
		Labels:              make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (sp *ScoredProduct) PutLabel(key string, lbl utils.Label) {
	if sp.Labels == nil {
		sp.Labels = make(map[string]utils.Label)
	}
	if old, ok := sp.Labels[key]; ok {
		sp.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	sp.Labels[key] = lbl
}
