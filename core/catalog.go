package core

import (
	"context"
	"time"
)

// CatalogReader 是商品/订单数据的只读领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（catalog）实现
//   - 推荐核心只读不写，不需要事务
//   - 所有方法都受调用方 ctx 的超时约束
//
// 实现：
//   - catalog.MemoryCatalog（测试/演示）
//   - catalog.SQLiteCatalog（modernc sqlite）
//   - catalog.BreakerReader（熔断包装）
type CatalogReader interface {
	// Name 返回数据源名称（用于日志/监控）
	Name() string

	// ========== 订单 ==========

	// GetCompletedOrders 获取用户 since 之后的已完成订单行，按下单时间倒序（最近的在前）。
	// since 为零值时返回全部历史。
	GetCompletedOrders(ctx context.Context, userID string, since time.Time) ([]InteractionRecord, error)

	// GetOrdersContaining 获取所有包含该商品的已完成订单的全部订单行（用于共购统计）。
	GetOrdersContaining(ctx context.Context, productID string) ([]InteractionRecord, error)

	// GetUsersWhoBought 获取至少买过其中一个商品的用户（用于限定协同过滤候选用户池）。
	GetUsersWhoBought(ctx context.Context, productIDs []string) ([]string, error)

	// GetOrderCountsSince 统计 since 之后每个商品出现在多少个已完成订单中。
	GetOrderCountsSince(ctx context.Context, since time.Time) (map[string]int, error)

	// ========== 商品 ==========

	// GetProduct 获取单个商品，不存在时返回 NOT_FOUND
	GetProduct(ctx context.Context, id string) (*ProductRef, error)

	// GetProducts 批量获取商品，不存在的 ID 直接跳过
	GetProducts(ctx context.Context, ids []string) (map[string]ProductRef, error)

	// GetProductsByCategory 获取类目下的在售商品
	GetProductsByCategory(ctx context.Context, categoryID string) ([]ProductRef, error)

	// GetProductsByTagOverlap 获取至少带有一个指定标签的在售商品
	GetProductsByTagOverlap(ctx context.Context, tags []string) ([]ProductRef, error)

	// GetProductsByPriceBand 获取价格在 [min, max] 内的在售商品
	GetProductsByPriceBand(ctx context.Context, min, max float64) ([]ProductRef, error)

	// GetActiveProducts 获取在售商品，categoryFilter 非空时只返回这些类目
	GetActiveProducts(ctx context.Context, categoryFilter []string) ([]ProductRef, error)
}

// Catalog 错误定义
var (
	// ErrProductNotFound 表示商品不存在
	ErrProductNotFound = NewDomainError(ModuleCatalog, ErrorCodeNotFound, "catalog: product not found")
)

// NewCatalogUnavailable 包装上游读取失败。
func NewCatalogUnavailable(op string, err error) *DomainError {
	return WrapDomainError(ModuleCatalog, ErrorCodeUnavailable, "catalog: "+op+" unavailable", err)
}
