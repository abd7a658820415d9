package bot

import (
	"evening/internal/models"
)

// NextReader determines whose turn it is to pick tonight's story.
//
// Rotation rules:
// 1. Children rotate in the order they joined the family
// 2. After the last child, the whole family reads together
// 3. After a family reading, rotation returns to the first child
// 4. If nothing was read yet, start with the first child
// 5. If the last reader is no longer in the family, start with the first child
func NextReader(children []models.Child, last models.ReaderKey, hasLast bool) models.ReaderKey {
	if len(children) == 0 {
		return models.FamilyReader()
	}

	first := models.ChildReader(children[0].ID)
	if !hasLast {
		return first
	}

	lastID, ok := last.ChildID()
	if !ok {
		// After family, return to first child
		return first
	}

	for i, child := range children {
		if child.ID != lastID {
			continue
		}
		if i == len(children)-1 {
			return models.FamilyReader()
		}
		return models.ChildReader(children[i+1].ID)
	}

	// Unknown reader, default to first child
	return first
}
