package graph

import (
	"github.com/stupid-db/stupid-db/pkg/entity"
)

// Projector extracts entities and edges from documents and upserts them
// into a graph store with segment back-references. One projector instance
// serves one graph; the caller holds the graph's write lock across
// ProjectDocument calls.
type Projector struct {
	store *Store
}

// NewProjector creates a projector over the given store.
func NewProjector(store *Store) *Projector {
	return &Projector{store: store}
}

// ProjectDocument maps one document into graph updates based on its
// event type and fields. Documents without a member identity contribute
// nothing. Returns the member node ID when one was upserted.
func (p *Projector) ProjectDocument(doc entity.Document, segmentID entity.SegmentID) (entity.NodeID, bool) {
	memberKey := doc.TextField("memberId")
	if memberKey == "" {
		memberKey = doc.TextField("username")
	}
	if memberKey == "" {
		return entity.NodeID{}, false
	}

	member := p.store.UpsertNode(entity.Member, memberKey, segmentID)

	if device := doc.TextField("deviceId"); device != "" {
		d := p.store.UpsertNode(entity.Device, device, segmentID)
		p.store.AddEdge(member, d, entity.LoggedInFrom, segmentID)
	}

	switch doc.EventType {
	case "GameOpened", "GridClick":
		if game := firstText(doc, "game", "gameName"); game != "" {
			g := p.store.UpsertNode(entity.Game, game, segmentID)
			p.store.AddEdge(member, g, entity.OpenedGame, segmentID)
			if provider := doc.TextField("provider"); provider != "" {
				pr := p.store.UpsertNode(entity.Provider, provider, segmentID)
				p.store.AddEdge(g, pr, entity.ProvidedBy, segmentID)
			}
		}
	case "PopupModule", "PopUpModule":
		if popup := firstText(doc, "popupType", "action"); popup != "" {
			pop := p.store.UpsertNode(entity.Popup, popup, segmentID)
			p.store.AddEdge(member, pop, entity.SawPopup, segmentID)
		}
	case "API Error":
		if code := firstText(doc, "statusCode", "url"); code != "" {
			e := p.store.UpsertNode(entity.ErrorEntity, code, segmentID)
			p.store.AddEdge(member, e, entity.HitError, segmentID)
		}
	}

	if group := doc.TextField("vipGroup"); group != "" {
		g := p.store.UpsertNode(entity.VipGroup, group, segmentID)
		p.store.AddEdge(member, g, entity.BelongsToGroup, segmentID)
	}
	if affiliate := doc.TextField("affiliateId"); affiliate != "" {
		a := p.store.UpsertNode(entity.Affiliate, affiliate, segmentID)
		p.store.AddEdge(member, a, entity.ReferredBy, segmentID)
	}
	if currency := doc.TextField("currency"); currency != "" {
		c := p.store.UpsertNode(entity.Currency, currency, segmentID)
		p.store.AddEdge(member, c, entity.UsesCurrency, segmentID)
	}
	if platform := doc.TextField("platform"); platform != "" {
		pl := p.store.UpsertNode(entity.Platform, platform, segmentID)
		p.store.AddEdge(member, pl, entity.PlaysOnPlatform, segmentID)
	}

	return member, true
}

// ProjectBatch projects a slice of documents that all belong to the same
// segment, returning how many contributed to the graph.
func (p *Projector) ProjectBatch(docs []entity.Document, segmentID entity.SegmentID) int {
	projected := 0
	for _, doc := range docs {
		if _, ok := p.ProjectDocument(doc, segmentID); ok {
			projected++
		}
	}
	return projected
}

func firstText(doc entity.Document, names ...string) string {
	for _, n := range names {
		if v := doc.FieldString(n); v != "" {
			return v
		}
	}
	return ""
}
