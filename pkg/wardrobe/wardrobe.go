// Package wardrobe provides the built-in tools that let the assistant look
// at, add to, and prune the user's wardrobe.
package wardrobe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/store"
	"github.com/nstogner/nevernood/pkg/tools"
)

// Tool names.
const (
	ToolList   = "list_wardrobe"
	ToolAdd    = "add_wardrobe_item"
	ToolRemove = "remove_wardrobe_item"
)

// Tools returns the wardrobe tools backed by s.
func Tools(s store.WardrobeStore) []tools.Tool {
	return []tools.Tool{
		{
			Name:        ToolList,
			Description: "List the clothing items in the user's wardrobe, optionally limited to one category (e.g. tops, bottoms, shoes, outerwear, accessories).",
			Parameters: tools.ObjectSchema(map[string]string{
				"category": "Optional category to filter by.",
			}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				category, _ := args["category"].(string)
				items, err := s.List(ctx, category)
				if err != nil {
					return nil, fmt.Errorf("listing wardrobe: %w", err)
				}
				return items, nil
			},
		},
		{
			Name:        ToolAdd,
			Description: "Add a clothing item to the user's wardrobe. Returns the stored item with its ID.",
			Parameters: tools.ObjectSchema(map[string]string{
				"name":     "Short description of the item, e.g. 'navy wool blazer'.",
				"category": "Category such as tops, bottoms, shoes, outerwear or accessories.",
				"color":    "Main color.",
				"season":   "Season the item suits best.",
				"notes":    "Any other detail worth remembering.",
			}, "name"),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := args["name"].(string)
				if strings.TrimSpace(name) == "" {
					return nil, fmt.Errorf("'name' parameter is required")
				}
				item := &domain.WardrobeItem{
					ID:   uuid.New().String(),
					Name: strings.TrimSpace(name),
				}
				item.Category, _ = args["category"].(string)
				item.Color, _ = args["color"].(string)
				item.Season, _ = args["season"].(string)
				item.Notes, _ = args["notes"].(string)
				if err := s.Create(ctx, item); err != nil {
					return nil, fmt.Errorf("creating wardrobe item: %w", err)
				}
				return item, nil
			},
		},
		{
			Name:        ToolRemove,
			Description: "Remove a clothing item from the user's wardrobe by its ID.",
			Parameters: tools.ObjectSchema(map[string]string{
				"id": "The item ID.",
			}, "id"),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				if id == "" {
					return nil, fmt.Errorf("'id' parameter is required")
				}
				if err := s.Delete(ctx, id); err != nil {
					return nil, fmt.Errorf("deleting wardrobe item: %w", err)
				}
				return "Item removed.", nil
			},
		},
	}
}

// Register adds the wardrobe tools to r.
func Register(r *tools.Registry, s store.WardrobeStore) error {
	for _, t := range Tools(s) {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
