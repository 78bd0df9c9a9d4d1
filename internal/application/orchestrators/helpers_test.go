package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"studio/internal/adapters/payments"
	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/activitylog"
	"studio/internal/domain/booking"
	"studio/internal/domain/event"
	"studio/internal/domain/invoice"
	"studio/internal/domain/voucher"
	"studio/internal/domain/waitinglist"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

// paidIntent is a payment intent whose metadata says cost was charged for bookingID.
func paidIntent(id, bookingID string, cost int64) payments.PaymentIntent {
	md := payments.NewIntentMetadata("INV1", "sig")
	md.AddItem(ItemBooking, bookingID, "Pole Level 1", cost, "")
	return payments.PaymentIntent{ID: id, Metadata: md.Map()}
}

// seqIDs returns a generator of "id-1", "id-2", ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

var errNotFound = errors.New("not found")

// --- accounts ---

type memAccounts struct {
	byID map[string]domainAccount.Account
}

func newMemAccounts(accts ...domainAccount.Account) *memAccounts {
	m := &memAccounts{byID: make(map[string]domainAccount.Account)}
	for _, a := range accts {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memAccounts) GetByID(_ context.Context, id string) (domainAccount.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return domainAccount.Account{}, fmt.Errorf("account not found: %w", errNotFound)
	}
	return a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (domainAccount.Account, error) {
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return domainAccount.Account{}, fmt.Errorf("account not found: %w", errNotFound)
}

// --- events ---

type memEvents struct {
	byID map[string]event.Event
	// order keeps ListMatching deterministic.
	order []string
}

func newMemEvents(evs ...event.Event) *memEvents {
	m := &memEvents{byID: make(map[string]event.Event)}
	for _, e := range evs {
		m.put(e)
	}
	return m
}

func (m *memEvents) put(e event.Event) {
	if _, ok := m.byID[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.byID[e.ID] = e
}

func (m *memEvents) GetByID(_ context.Context, id string) (event.Event, error) {
	e, ok := m.byID[id]
	if !ok {
		return event.Event{}, fmt.Errorf("event not found: %w", errNotFound)
	}
	return e, nil
}

func (m *memEvents) Save(_ context.Context, e event.Event) error {
	m.put(e)
	return nil
}

func (m *memEvents) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, e := range m.byID {
		if e.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEvents) ListMatching(_ context.Context, name, eventType string, date time.Time, venueID string) ([]event.Event, error) {
	var out []event.Event
	for _, id := range m.order {
		e := m.byID[id]
		if e.Name == name && e.EventType == eventType && e.Date.Equal(date) && e.VenueID == venueID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- bookings ---

// memBookings enforces event capacity on Save the way the sqlite store does.
type memBookings struct {
	byID   map[string]booking.Booking
	events *memEvents
	saves  int
}

func newMemBookings(events *memEvents, bs ...booking.Booking) *memBookings {
	m := &memBookings{byID: make(map[string]booking.Booking), events: events}
	for _, b := range bs {
		m.byID[b.ID] = b
	}
	return m
}

func (m *memBookings) GetByID(_ context.Context, id string) (booking.Booking, error) {
	b, ok := m.byID[id]
	if !ok {
		return booking.Booking{}, fmt.Errorf("booking not found: %w", errNotFound)
	}
	return b, nil
}

func (m *memBookings) GetByUserAndEvent(_ context.Context, userID, eventID string) (booking.Booking, bool, error) {
	for _, b := range m.byID {
		if b.UserID == userID && b.EventID == eventID {
			return b, true, nil
		}
	}
	return booking.Booking{}, false, nil
}

func (m *memBookings) Save(ctx context.Context, b booking.Booking) error {
	ev, err := m.events.GetByID(ctx, b.EventID)
	if err != nil {
		return err
	}
	open, _ := m.CountOpen(ctx, b.EventID)
	var prev *booking.Booking
	if p, ok := m.byID[b.ID]; ok {
		prev = &p
	}
	if err := b.CheckCapacity(prev, ev.SpacesLeft(open)); err != nil {
		return err
	}
	m.byID[b.ID] = b
	m.saves++
	return nil
}

func (m *memBookings) CountOpen(_ context.Context, eventID string) (int, error) {
	n := 0
	for _, b := range m.byID {
		if b.EventID == eventID && b.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m *memBookings) list(keep func(b booking.Booking) bool) []booking.Booking {
	var out []booking.Booking
	for _, b := range m.byID {
		if keep(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b booking.Booking) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *memBookings) ListFeesForUser(_ context.Context, userID string) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool { return b.UserID == userID && b.CancellationFeeIncurred }), nil
}

func (m *memBookings) ListUnpaidForUser(_ context.Context, userID string) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool { return b.UserID == userID && !b.Paid && b.IsActive() }), nil
}

func (m *memBookings) ListByInvoice(_ context.Context, invoiceID string) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool { return b.InvoiceID == invoiceID }), nil
}

func (m *memBookings) ListByEvent(_ context.Context, eventID, status string) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool {
		return b.EventID == eventID && (status == "" || b.Status == status)
	}), nil
}

func (m *memBookings) ListReminderDue(_ context.Context, from, to, bookedBefore time.Time) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool {
		ev := m.events.byID[b.EventID]
		return !ev.Cancelled && !ev.Date.Before(from) && ev.Date.Before(to) &&
			b.Status == booking.StatusOpen && !b.NoShow && b.Paid && !b.ReminderSent &&
			b.LastBooked().Before(bookedBefore)
	}), nil
}

func (m *memBookings) ListUnpaidExpired(_ context.Context, bookedBefore, checkoutBefore time.Time) ([]booking.Booking, error) {
	return m.list(func(b booking.Booking) bool {
		return !b.Paid && b.IsActive() && b.LastBooked().Before(bookedBefore) &&
			(b.CheckoutTime.IsZero() || b.CheckoutTime.Before(checkoutBefore))
	}), nil
}

// --- waiting list ---

type memWaitingList struct {
	entries []waitinglist.WaitingListUser
}

func (m *memWaitingList) Add(_ context.Context, w waitinglist.WaitingListUser) error {
	m.entries = append(m.entries, w)
	return nil
}

func (m *memWaitingList) Remove(_ context.Context, userID, eventID string) error {
	m.entries = slices.DeleteFunc(m.entries, func(w waitinglist.WaitingListUser) bool {
		return w.UserID == userID && w.EventID == eventID
	})
	return nil
}

func (m *memWaitingList) Exists(_ context.Context, userID, eventID string) (bool, error) {
	return slices.ContainsFunc(m.entries, func(w waitinglist.WaitingListUser) bool {
		return w.UserID == userID && w.EventID == eventID
	}), nil
}

func (m *memWaitingList) ListByEvent(_ context.Context, eventID string) ([]waitinglist.WaitingListUser, error) {
	var out []waitinglist.WaitingListUser
	for _, w := range m.entries {
		if w.EventID == eventID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWaitingList) DeleteByEvent(_ context.Context, eventID string) error {
	m.entries = slices.DeleteFunc(m.entries, func(w waitinglist.WaitingListUser) bool { return w.EventID == eventID })
	return nil
}

// --- invoices ---

type memInvoices struct {
	byID map[string]invoice.Invoice
}

func newMemInvoices(invs ...invoice.Invoice) *memInvoices {
	m := &memInvoices{byID: make(map[string]invoice.Invoice)}
	for _, inv := range invs {
		m.byID[inv.ID] = inv
	}
	return m
}

func (m *memInvoices) GetByID(_ context.Context, id string) (invoice.Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	return inv, nil
}

func (m *memInvoices) GetByInvoiceID(_ context.Context, invoiceID string) (invoice.Invoice, error) {
	for _, inv := range m.byID {
		if inv.InvoiceID == invoiceID {
			return inv, nil
		}
	}
	return invoice.Invoice{}, invoice.ErrNotFound
}

func (m *memInvoices) GetUnpaidForUser(_ context.Context, username string) (invoice.Invoice, bool, error) {
	for _, inv := range m.byID {
		if inv.Username == username && !inv.Paid {
			return inv, true, nil
		}
	}
	return invoice.Invoice{}, false, nil
}

func (m *memInvoices) Save(_ context.Context, inv invoice.Invoice) error {
	m.byID[inv.ID] = inv
	return nil
}

// --- vouchers and gift vouchers ---

type memVouchers struct {
	vouchers map[string]voucher.Voucher
	uses     []voucher.Use
	types    map[string]voucher.GiftVoucherType
	gifts    map[string]voucher.GiftVoucher
}

func newMemVouchers() *memVouchers {
	return &memVouchers{
		vouchers: make(map[string]voucher.Voucher),
		types:    make(map[string]voucher.GiftVoucherType),
		gifts:    make(map[string]voucher.GiftVoucher),
	}
}

func (m *memVouchers) GetByID(_ context.Context, id string) (voucher.Voucher, error) {
	v, ok := m.vouchers[id]
	if !ok {
		return voucher.Voucher{}, voucher.ErrNotFound
	}
	return v, nil
}

func (m *memVouchers) GetByCode(_ context.Context, code string) (voucher.Voucher, error) {
	for _, v := range m.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return voucher.Voucher{}, voucher.ErrNotFound
}

func (m *memVouchers) Save(_ context.Context, v voucher.Voucher) error {
	m.vouchers[v.ID] = v
	return nil
}

func (m *memVouchers) CountUses(_ context.Context, voucherID string) (int, error) {
	n := 0
	for _, u := range m.uses {
		if u.VoucherID == voucherID {
			n++
		}
	}
	return n, nil
}

func (m *memVouchers) CountUsesByUser(_ context.Context, voucherID, userID string) (int, error) {
	n := 0
	for _, u := range m.uses {
		if u.VoucherID == voucherID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memVouchers) RecordUse(_ context.Context, u voucher.Use) error {
	m.uses = append(m.uses, u)
	return nil
}

func (m *memVouchers) GetType(_ context.Context, id string) (voucher.GiftVoucherType, error) {
	t, ok := m.types[id]
	if !ok {
		return voucher.GiftVoucherType{}, voucher.ErrNotFound
	}
	return t, nil
}

func (m *memVouchers) SaveGift(_ context.Context, g voucher.GiftVoucher) error {
	m.gifts[g.ID] = g
	return nil
}

func (m *memVouchers) ListUnpaidGifts(_ context.Context, purchaserEmail string) ([]voucher.GiftVoucher, error) {
	var out []voucher.GiftVoucher
	for _, g := range m.gifts {
		if g.PurchaserEmail == purchaserEmail && !g.Paid {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memVouchers) ListGiftsByInvoice(_ context.Context, invoiceID string) ([]voucher.GiftVoucher, error) {
	var out []voucher.GiftVoucher
	for _, g := range m.gifts {
		if g.InvoiceID == invoiceID {
			out = append(out, g)
		}
	}
	return out, nil
}

// --- payments ---

type fakeGateway struct {
	intents   map[string]payments.PaymentIntent
	refunds   map[string]int64
	created   int
	refundErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]payments.PaymentIntent), refunds: make(map[string]int64)}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req payments.IntentRequest) (payments.PaymentIntent, error) {
	g.created++
	id := fmt.Sprintf("pi_%d", g.created)
	pi := payments.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Metadata: req.Metadata}
	g.intents[id] = pi
	return pi, nil
}

func (g *fakeGateway) UpdatePaymentIntent(_ context.Context, id string, req payments.IntentRequest) (payments.PaymentIntent, error) {
	pi := payments.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Metadata: req.Metadata}
	g.intents[id] = pi
	return pi, nil
}

func (g *fakeGateway) GetPaymentIntent(_ context.Context, id string) (payments.PaymentIntent, error) {
	pi, ok := g.intents[id]
	if !ok {
		return payments.PaymentIntent{}, errNotFound
	}
	return pi, nil
}

func (g *fakeGateway) Refund(_ context.Context, id string, amount int64) (string, error) {
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds[id] += amount
	return "re_" + id, nil
}

func (g *fakeGateway) PublishableKey() string { return "pk_test" }

// --- activity log and mail ---

type memActivityLog struct {
	entries []activitylog.Entry
}

func (m *memActivityLog) Append(_ context.Context, e activitylog.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memActivityLog) DeleteByLog(_ context.Context, log string) error {
	m.entries = slices.DeleteFunc(m.entries, func(e activitylog.Entry) bool { return e.Log == log })
	return nil
}

func (m *memActivityLog) contains(substr string) bool {
	for _, e := range m.entries {
		if strings.Contains(e.Log, substr) {
			return true
		}
	}
	return false
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (r *recordingMailer) Send(_ context.Context, m Mail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingMailer) SendAll(ctx context.Context, mails []Mail) {
	for _, m := range mails {
		r.Send(ctx, m)
	}
}

func (r *recordingMailer) byTemplate(name string) []Mail {
	var out []Mail
	for _, m := range r.sent {
		if m.Template == name {
			out = append(out, m)
		}
	}
	return out
}

// --- fixtures ---

// studioFixture wires every fake together around one student, one admin and one event.
type studioFixture struct {
	accounts *memAccounts
	events   *memEvents
	bookings *memBookings
	waiting  *memWaitingList
	invoices *memInvoices
	vouchers *memVouchers
	gateway  *fakeGateway
	log      *memActivityLog
	mailer   *recordingMailer
	studio   StudioConfig
	ids      func() string
}

var (
	student = domainAccount.Account{ID: "u-student", Email: "sam@example.com", Username: "sam", FirstName: "Sam", LastName: "Lee", Role: domainAccount.RoleStudent}
	admin   = domainAccount.Account{ID: "u-admin", Email: "admin@example.com", Username: "admin", FirstName: "Alex", Role: domainAccount.RoleAdmin}
)

// testEvent is a paid class three days after fixedTime with a 24h cancellation period.
func testEvent() event.Event {
	ev := event.New("ev-1", "Pole Level 1", event.TypeRegularSession, fixedTime.Add(72*time.Hour))
	ev.Cost = 1200
	ev.MaxParticipants = 2
	ev.Slug = "pole-level-1-04mar26"
	return ev
}

func newStudioFixture(evs ...event.Event) *studioFixture {
	if len(evs) == 0 {
		evs = []event.Event{testEvent()}
	}
	events := newMemEvents(evs...)
	return &studioFixture{
		accounts: newMemAccounts(student, admin),
		events:   events,
		bookings: newMemBookings(events),
		waiting:  &memWaitingList{},
		invoices: newMemInvoices(),
		vouchers: newMemVouchers(),
		gateway:  newFakeGateway(),
		log:      &memActivityLog{},
		mailer:   &recordingMailer{},
		studio:   StudioConfig{StudioEmail: "studio@example.com", SupportEmail: "support@example.com", InvoiceKey: "secret", CartTimeout: 15 * time.Minute},
		ids:      seqIDs(),
	}
}

func (f *studioFixture) addAccount(a domainAccount.Account) {
	f.accounts.byID[a.ID] = a
}

func (f *studioFixture) bookingDeps() BookingDeps {
	return BookingDeps{
		Accounts:    f.accounts,
		Events:      f.events,
		Bookings:    f.bookings,
		WaitingList: f.waiting,
		Invoices:    f.invoices,
		Payments:    f.gateway,
		ActivityLog: f.log,
		Mailer:      f.mailer,
		Studio:      f.studio,
		GenerateID:  f.ids,
		Now:         fixedNow,
	}
}

func (f *studioFixture) paymentDeps() PaymentDeps {
	return PaymentDeps{
		Accounts:    f.accounts,
		Events:      f.events,
		Bookings:    f.bookings,
		Gifts:       f.vouchers,
		Vouchers:    f.vouchers,
		Invoices:    f.invoices,
		Payments:    f.gateway,
		ActivityLog: f.log,
		Mailer:      f.mailer,
		Studio:      f.studio,
		GenerateID:  f.ids,
		Now:         fixedNow,
	}
}

func (f *studioFixture) eventDeps() EventDeps {
	return EventDeps{
		Events:      f.events,
		Bookings:    f.bookings,
		WaitingList: f.waiting,
		Accounts:    f.accounts,
		Invoices:    f.invoices,
		Payments:    f.gateway,
		ActivityLog: f.log,
		Mailer:      f.mailer,
		GenerateID:  f.ids,
		Now:         fixedNow,
	}
}

func (f *studioFixture) housekeepingDeps() HousekeepingDeps {
	return HousekeepingDeps{BookingDeps: f.bookingDeps(), Due: f.bookings, LogCleaner: f.log}
}

// book stores an OPEN booking directly, bypassing capacity checks.
func (f *studioFixture) book(id, userID, eventID string, paid bool) booking.Booking {
	b := booking.New(id, userID, eventID, fixedTime.Add(-24*time.Hour))
	b.Paid = paid
	f.bookings.byID[id] = b
	return b
}

func intPtr(n int) *int { return &n }
