package items

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/omni-backend/pkg/db/models"
)

// Projection selects the optional item fields returned to callers.
type Projection struct {
	Meta    bool
	Content bool
}

// Full includes every optional field.
var Full = Projection{Meta: true, Content: true}

// Item is the projected view of a stored item. item_id, item_type and
// updated_at are always present; the rest depend on the projection.
type Item struct {
	ItemID      string          `json:"item_id"`
	ItemType    *string         `json:"item_type"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ItemMeta    json.RawMessage `json:"item_meta,omitempty"`
	ItemContent *string         `json:"item_content,omitempty"`
}

func (p Projection) columns() []string {
	cols := []string{"item_id", "item_type", "updated_at"}
	if p.Meta {
		cols = append(cols, "item_meta")
	}
	if p.Content {
		cols = append(cols, "item_content")
	}
	return cols
}

func toItem(row models.UserItem, p Projection) Item {
	out := Item{
		ItemID:    row.ItemID,
		ItemType:  row.ItemType,
		UpdatedAt: row.UpdatedAt,
	}
	if p.Meta {
		meta := json.RawMessage(row.ItemMeta)
		if len(meta) == 0 {
			meta = json.RawMessage(emptyObject)
		}
		out.ItemMeta = meta
	}
	if p.Content {
		content := row.ItemContent
		out.ItemContent = &content
	}
	return out
}
