// Package board composes the roster store, the pagination engine and the
// address synchronizer into one serialized state machine.
//
// Every operation runs to a settled state before it returns: the mutation or
// navigation is applied, the engine reclamps the current page, and the
// remembered address is rewritten to carry that page. Settling a settled
// board changes nothing.
package board

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/model"
	"github.com/vyrodovalexey/rosterboard/internal/navsync"
	"github.com/vyrodovalexey/rosterboard/internal/paging"
	"github.com/vyrodovalexey/rosterboard/internal/sharelink"
	"github.com/vyrodovalexey/rosterboard/internal/store"
)

// Board errors.
var (
	ErrMemberNotFound = errors.New("member not found")
	ErrShareDisabled  = errors.New("nothing to share on an empty board")
)

// ImageLookup resolves a portrait for a new member. It must always return a
// usable URL.
type ImageLookup interface {
	Lookup(ctx context.Context, jobTitle string) string
}

// Notifier receives an event after each settled change.
type Notifier interface {
	Notify(event model.BoardEvent)
}

// Snapshot is the settled, render-ready state of the board.
type Snapshot struct {
	Members     []model.Member `json:"members"`
	Paginated   bool           `json:"paginated"`
	Page        int            `json:"page,omitempty"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	StartIndex  int            `json:"startIndex"`
	EndIndex    int            `json:"endIndex"`
	CanPrevious bool           `json:"canPrevious"`
	CanNext     bool           `json:"canNext"`
	CanShare    bool           `json:"canShare"`
	Address     string         `json:"address"`
}

// Option configures a Board.
type Option func(*Board)

// WithImageLookup sets the portrait resolver used by Add.
func WithImageLookup(images ImageLookup) Option {
	return func(b *Board) {
		b.images = images
	}
}

// WithNotifier sets the receiver of board events.
func WithNotifier(n Notifier) Option {
	return func(b *Board) {
		b.notifier = n
	}
}

// WithClipboard sets the sink that receives share links.
func WithClipboard(sink sharelink.Sink) Option {
	return func(b *Board) {
		b.clipboard = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Board) {
		b.logger = logger
	}
}

// Board is the single source of truth for the current page.
type Board struct {
	mu        sync.Mutex
	store     store.Store
	engine    *paging.Engine
	address   *url.URL
	images    ImageLookup
	notifier  Notifier
	clipboard sharelink.Sink
	logger    *zap.Logger
}

// New creates a board over an already loaded store. The current page is
// seeded from address through the inbound path.
func New(st store.Store, address *url.URL, opts ...Option) *Board {
	b := &Board{
		store:  st,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	out := navsync.Inbound(address, paging.TotalPages(st.Len()))
	b.engine = paging.NewEngine(st.Len, out.Page)
	b.address = out.Address

	return b
}

// Open runs the inbound path for an externally supplied address. It reports
// whether the address had to be replaced.
func (b *Board) Open(address *url.URL) (Snapshot, bool) {
	if address == nil {
		address = &url.URL{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.engine.Current()
	out := navsync.Inbound(address, paging.TotalPages(b.store.Len()))
	b.engine.GoTo(out.Page)
	b.address = out.Address

	if out.Replaced {
		pageRedirectsTotal.WithLabelValues("inbound").Inc()
		b.logger.Debug("address replaced",
			zap.String("requested", address.String()),
			zap.String("settled", out.Address.String()),
		)
	}
	b.settleLocked()

	snap := b.snapshotLocked()
	if b.engine.Current() != previous {
		b.notify(pageEvent(snap))
	}
	return snap, out.Replaced
}

// GoTo moves to page, clamped into range.
func (b *Board) GoTo(page int) Snapshot {
	return b.navigate("goto", func() (int, bool) { return b.engine.GoTo(page) })
}

// Next moves one page forward.
func (b *Board) Next() Snapshot {
	return b.navigate("next", b.engine.Next)
}

// Previous moves one page back.
func (b *Board) Previous() Snapshot {
	return b.navigate("previous", b.engine.Previous)
}

func (b *Board) navigate(action string, move func() (int, bool)) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	navigationsTotal.WithLabelValues(action).Inc()
	_, changed := move()
	b.settleLocked()

	snap := b.snapshotLocked()
	if changed {
		b.notify(pageEvent(snap))
	}
	return snap
}

// Add validates fields, resolves a portrait and appends a new member.
func (b *Board) Add(ctx context.Context, fields model.MemberFields) (model.Member, Snapshot, error) {
	if err := fields.Validate(); err != nil {
		return model.Member{}, Snapshot{}, err
	}
	fields = fields.Normalize()

	image := model.DefaultImageURL
	if b.images != nil {
		image = b.images.Lookup(ctx, fields.JobTitle)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	member := b.store.Add(ctx, fields, image)
	b.settleLocked()
	snap := b.snapshotLocked()

	b.logger.Info("member added",
		zap.String("member_id", member.ID),
		zap.Int("page", snap.Page),
		zap.Int("total_pages", snap.TotalPages),
	)

	ev := model.NewBoardEvent(model.EventMemberAdded)
	ev.Title = "Welcome aboard!"
	ev.Description = fmt.Sprintf("%s has joined the team!", member.UserName)
	ev.MemberID = member.ID
	b.notify(withPage(ev, snap))

	return member, snap, nil
}

// Update replaces the display fields of member id.
func (b *Board) Update(ctx context.Context, id string, patch model.MemberFields) (Snapshot, error) {
	if err := patch.Validate(); err != nil {
		return Snapshot{}, err
	}
	patch = patch.Normalize()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.store.Update(ctx, id, patch) {
		return Snapshot{}, fmt.Errorf("update member %q: %w", id, ErrMemberNotFound)
	}
	b.settleLocked()
	snap := b.snapshotLocked()

	b.logger.Info("member updated", zap.String("member_id", id))

	ev := model.NewBoardEvent(model.EventMemberUpdated)
	ev.Title = "Updated!"
	ev.Description = "Staff member details have been updated!"
	ev.MemberID = id
	b.notify(withPage(ev, snap))

	return snap, nil
}

// Delete removes member id. When the board shrinks below the current page
// the page is reset to 1 and the address rewritten.
func (b *Board) Delete(ctx context.Context, id string) (model.Member, Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed, ok := b.store.Remove(ctx, id)
	if !ok {
		return model.Member{}, Snapshot{}, fmt.Errorf("delete member %q: %w", id, ErrMemberNotFound)
	}
	b.settleLocked()
	snap := b.snapshotLocked()

	b.logger.Info("member removed",
		zap.String("member_id", id),
		zap.Int("page", snap.Page),
		zap.Int("total_pages", snap.TotalPages),
	)

	ev := model.NewBoardEvent(model.EventMemberRemoved)
	ev.Title = "See you later!"
	ev.Description = fmt.Sprintf("%s has moved on to new adventures", removed.UserName)
	ev.MemberID = id
	b.notify(withPage(ev, snap))

	return removed, snap, nil
}

// Share builds the deep link to the current page and publishes it to the
// clipboard sink.
func (b *Board) Share(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.store.Len() == 0 {
		b.mu.Unlock()
		return "", ErrShareDisabled
	}
	link := sharelink.ForPage(b.address, b.engine.Current())
	b.mu.Unlock()

	sharesTotal.Inc()
	sharelink.Publish(ctx, b.clipboard, link, b.logger)
	return link, nil
}

// Snapshot returns the current settled state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Members returns the whole roster in insertion order.
func (b *Board) Members(ctx context.Context) []model.Member {
	return b.store.List(ctx)
}

// Settle re-runs the reconciliation chain and reports whether it changed
// anything. On a settled board it always returns false.
func (b *Board) Settle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settleLocked()
}

// settleLocked reclamps the page after a size change, then mirrors it into
// the address.
func (b *Board) settleLocked() bool {
	page, reclamped := b.engine.Reclamp()
	if reclamped {
		pageRedirectsTotal.WithLabelValues("reclamp").Inc()
	}

	out := navsync.Reconcile(b.address, page)
	b.address = out.Address

	return reclamped || out.Replaced
}

func (b *Board) snapshotLocked() Snapshot {
	state := b.engine.State()
	window := paging.View(b.store.List(context.Background()), state.CurrentPage)

	// An empty board has no meaningful page number.
	page := 0
	if state.Paginated() {
		page = state.CurrentPage
	}

	return Snapshot{
		Members:     window.Items,
		Paginated:   state.Paginated(),
		Page:        page,
		TotalPages:  state.TotalPages,
		TotalItems:  state.TotalItems,
		StartIndex:  window.StartIndex,
		EndIndex:    window.EndIndex,
		CanPrevious: state.CanPrevious,
		CanNext:     state.CanNext,
		CanShare:    state.TotalItems > 0,
		Address:     b.address.String(),
	}
}

func (b *Board) notify(ev model.BoardEvent) {
	if b.notifier != nil {
		b.notifier.Notify(ev)
	}
}

func pageEvent(snap Snapshot) model.BoardEvent {
	return withPage(model.NewBoardEvent(model.EventPageChanged), snap)
}

func withPage(ev model.BoardEvent, snap Snapshot) model.BoardEvent {
	ev.Page = snap.Page
	ev.TotalPages = snap.TotalPages
	return ev
}
