package state

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/events"
)

// UpsertTemplate stores a user template. Built-in templates are read-only.
func (s *Store) UpsertTemplate(ctx context.Context, tpl *cards.Template) (*cards.Template, error) {
	var stored *cards.Template
	_, err := s.Update(ctx, func(tx *Tx) error {
		cp := tpl.Clone()
		if cp.ID == "" {
			cp.ID = tx.NewID()
		}
		if cards.IsBuiltInTemplateID(cp.ID) {
			return fmt.Errorf("%w: %s", cards.ErrBuiltInTemplate, cp.ID)
		}
		if cp.Schema == nil {
			cp.Schema = map[string]cards.SchemaItem{}
		}
		for id, item := range cp.Schema {
			if item.ID != id {
				return fmt.Errorf("%w: slot %s stored under %s", cards.ErrInvalidValue, item.ID, id)
			}
		}
		tx.Templates().Upsert(cp)
		tx.Emit(events.TypeTemplateUpdated, events.TemplateEvent{TemplateID: cp.ID})
		stored = cp
		return nil
	})
	return stored, err
}

// RemoveTemplate deletes a user template. Decks bound to it fall back to
// the blank template and lose the mappings of that face.
func (s *Store) RemoveTemplate(ctx context.Context, templateID string) error {
	_, err := s.Update(ctx, func(tx *Tx) error {
		if cards.IsBuiltInTemplateID(templateID) {
			return fmt.Errorf("%w: %s", cards.ErrBuiltInTemplate, templateID)
		}
		if !tx.Templates().Remove(templateID) {
			return fmt.Errorf("%w: template %s", cards.ErrNotFound, templateID)
		}
		for _, deck := range tx.View().Decks.All() {
			front := deck.Templates.Front.TemplateID == templateID
			back := deck.Templates.Back.TemplateID == templateID
			if !front && !back {
				continue
			}
			cp := deck.Clone()
			if front {
				cp.Templates.Front = blankBinding()
			}
			if back {
				cp.Templates.Back = blankBinding()
			}
			tx.Decks().Upsert(cp)
			tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: cp.ID})
		}
		tx.Emit(events.TypeTemplateRemoved, events.TemplateEvent{TemplateID: templateID})
		return nil
	})
	return err
}

func blankBinding() cards.TemplateBinding {
	return cards.TemplateBinding{TemplateID: cards.TemplateBlankID, DataTemplateMapping: map[string]cards.MappingItem{}}
}

// UpdateSettings applies fn to a copy of the settings and stores the result.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*Settings)) (Settings, error) {
	var updated Settings
	_, err := s.Update(ctx, func(tx *Tx) error {
		next := tx.View().Settings
		fn(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		tx.SetSettings(next)
		tx.Emit(events.TypeSettingsUpdated, events.SettingsEvent{})
		updated = next
		return nil
	})
	return updated, err
}
