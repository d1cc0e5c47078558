package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/buildcrew/internal/core/domain"
	"github.com/rl1809/buildcrew/internal/core/service"
)

type itemDTO struct {
	Name              string   `json:"name"`
	QuantityRequired  int      `json:"quantity_required"`
	QuantityCollected int      `json:"quantity_collected"`
	Remaining         int      `json:"remaining"`
	Dependencies      []string `json:"dependencies,omitempty"`
	Status            string   `json:"status"`
}

func itemResponse(item domain.Item) itemDTO {
	return itemDTO{
		Name:              item.Name,
		QuantityRequired:  item.QuantityRequired,
		QuantityCollected: item.QuantityCollected,
		Remaining:         item.Remaining(),
		Dependencies:      item.Dependencies,
		Status:            string(item.Status),
	}
}

func snapshotResponse(snap *service.Snapshot) gin.H {
	items := make([]itemDTO, 0, len(snap.Project.Items))
	for _, item := range snap.Project.Items {
		items = append(items, itemResponse(item))
	}
	return gin.H{
		"id":          snap.Project.ID,
		"name":        snap.Project.Name,
		"target_item": snap.Project.TargetItem,
		"created_at":  snap.Project.CreatedAt,
		"items":       items,
		"progress":    snap.Progress,
		"bottlenecks": snap.Bottlenecks,
	}
}

type contributionDTO struct {
	ID            string    `json:"id"`
	Item          string    `json:"item"`
	Quantity      int       `json:"quantity"`
	ContributorID string    `json:"contributor_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func contributionsResponse(log []domain.Contribution) []contributionDTO {
	out := make([]contributionDTO, 0, len(log))
	for _, c := range log {
		out = append(out, contributionDTO{
			ID:            c.ID,
			Item:          c.ItemName,
			Quantity:      c.Quantity,
			ContributorID: c.ContributorID,
			CreatedAt:     c.CreatedAt,
		})
	}
	return out
}

type eventDTO struct {
	ID            string    `json:"id"`
	Item          string    `json:"item"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	ContributorID string    `json:"contributor_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func eventsResponse(events []domain.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, eventDTO{
			ID:            e.ID,
			Item:          e.ItemName,
			Type:          string(e.Type),
			Quantity:      e.Quantity,
			ContributorID: e.ContributorID,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
