// Package catalog 提供 core.CatalogReader 的实现：
//   - MemoryCatalog：内存数据，用于测试/演示
//   - SQLiteCatalog：modernc sqlite，只包含推荐计算所需的最小表结构
//   - BreakerReader：熔断包装，上游不可用时快速失败
package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/shoprec/core"
)

// Order 是一笔订单（写入侧使用）。
type Order struct {
	ID       string      `json:"id" yaml:"id"`
	UserID   string      `json:"user_id" yaml:"user_id"`
	Status   string      `json:"status" yaml:"status"`
	PlacedAt time.Time   `json:"placed_at" yaml:"placed_at"`
	Items    []OrderItem `json:"items" yaml:"items"`
}

// OrderItem 是订单中的一行商品。
type OrderItem struct {
	ProductID string  `json:"product_id" yaml:"product_id"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	UnitPrice float64 `json:"unit_price" yaml:"unit_price"`
}

// Records 把订单展开成订单行。
func (o *Order) Records() []core.InteractionRecord {
	out := make([]core.InteractionRecord, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, core.InteractionRecord{
			OrderID:        o.ID,
			UserID:         o.UserID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			OrderTimestamp: o.PlacedAt,
			OrderStatus:    o.Status,
		})
	}
	return out
}

// Writer 是可写入商品与订单的 catalog（用于导入数据/测试构造）。
type Writer interface {
	AddProduct(ctx context.Context, p core.ProductRef) error
	AddOrder(ctx context.Context, o Order) error
}

// productYAML 用于 YAML 解码（core.ProductRef 只带 json tag）。
type productYAML struct {
	ID          string    `yaml:"id"`
	CategoryID  string    `yaml:"category_id"`
	Tags        []string  `yaml:"tags"`
	Price       float64   `yaml:"price"`
	Status      string    `yaml:"status"`
	UnitsSold   int64     `yaml:"units_sold"`
	ReviewCount int64     `yaml:"review_count"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// LoadFixtures 读取 YAML 文件并写入 w。
func LoadFixtures(ctx context.Context, w Writer, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading fixtures: %w", err)
	}
	return ImportFixtures(ctx, w, data)
}

// ImportFixtures 解析 YAML 数据并写入 w，返回导入的商品数与订单数。
func ImportFixtures(ctx context.Context, w Writer, data []byte) (int, int, error) {
	var raw struct {
		Products []productYAML `yaml:"products"`
		Orders   []Order       `yaml:"orders"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return 0, 0, fmt.Errorf("parsing fixtures: %w", err)
	}
	for _, p := range raw.Products {
		ref := core.ProductRef(p)
		if ref.Status == "" {
			ref.Status = core.ProductStatusActive
		}
		if err := w.AddProduct(ctx, ref); err != nil {
			return 0, 0, fmt.Errorf("adding product %s: %w", p.ID, err)
		}
	}
	for _, o := range raw.Orders {
		if err := w.AddOrder(ctx, o); err != nil {
			return 0, 0, fmt.Errorf("adding order %s: %w", o.ID, err)
		}
	}
	return len(raw.Products), len(raw.Orders), nil
}
