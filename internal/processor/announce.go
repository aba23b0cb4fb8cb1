package processor

import (
	"context"
	"fmt"

	"shopflow/internal/model"
	"shopflow/internal/notify"
	"shopflow/internal/repository"
	"shopflow/pkg/constraints"
)

// Announce posts a new-product announcement through the notification sink.
type Announce struct {
	products repository.ProductInterface
	notifier notify.Notifier
}

func NewAnnounce(products repository.ProductInterface, notifier notify.Notifier) *Announce {
	return &Announce{products: products, notifier: notifier}
}

func (p *Announce) WorkType() string { return constraints.WorkTypeNewItem }

func (p *Announce) Name() string { return "announce" }

func (p *Announce) Process(ctx context.Context, item *model.QueueItem) error {
	product, err := p.products.GetByID(ctx, item.SubjectID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("product %d not found", item.SubjectID)
	}
	message := fmt.Sprintf("New in store: %s (%s) at %s %.2f",
		product.Name, product.SKU, product.Currency, float64(product.PriceCents)/100)
	return p.notifier.Notify(ctx, message)
}
