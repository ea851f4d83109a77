package services

import (
	"sort"
	"strconv"
	"strings"

	"ticket-checkout/internal/models"
)

const (
	voucherDiscountName        = "Customer voucher discount sum"
	bookingProtectionLabel     = "Booking protection"
	performanceDateLayout      = "02 Jan 2006 15:04"
	voucherDescriptionFallback = "Gift voucher"
)

// BasketGroup is the desired state of one remote line item: every reserved
// seat sharing a performance and price band.
type BasketGroup struct {
	Key         models.LineItemKey
	Quantity    int64
	UnitAmount  int64
	Name        string
	Description string
	OrderItemID int64
}

// GroupTickets collapses tickets into one group per (performance, price)
// pair, ordered by event, performance and price.
func GroupTickets(tickets []models.Ticket) []BasketGroup {
	type acc struct {
		group BasketGroup
		first models.Ticket
		seats []string
	}
	byKey := make(map[models.LineItemKey]*acc)
	var keys []models.LineItemKey

	for _, t := range tickets {
		key := models.LineItemKey{EventID: t.EventID, PerformanceID: t.PerformanceID, PriceID: t.PriceID}
		a, ok := byKey[key]
		if !ok {
			a = &acc{
				group: BasketGroup{
					Key:         key,
					UnitAmount:  models.ToMinor(t.UnitPrice),
					Name:        t.EventName,
					OrderItemID: t.OrderItemID,
				},
				first: t,
			}
			byKey[key] = a
			keys = append(keys, key)
		}
		a.group.Quantity++
		if t.OrderItemID < a.group.OrderItemID {
			a.group.OrderItemID = t.OrderItemID
		}
		if t.IsVoucher() || t.IsBookingProtection() {
			if t.SeatRow != "" && t.SeatRow != models.BookingProtectionRow {
				a.seats = append(a.seats, t.SeatRow)
			}
		} else {
			a.seats = append(a.seats, t.SeatRow+strconv.Itoa(t.SeatNumber))
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		if a.PerformanceID != b.PerformanceID {
			return a.PerformanceID < b.PerformanceID
		}
		return a.PriceID < b.PriceID
	})

	groups := make([]BasketGroup, 0, len(keys))
	for _, key := range keys {
		a := byKey[key]
		a.group.Description = describeGroup(a.first, a.seats)
		groups = append(groups, a.group)
	}
	return groups
}

func describeGroup(first models.Ticket, seats []string) string {
	switch {
	case first.IsBookingProtection():
		return bookingProtectionLabel
	case first.IsVoucher():
		if len(seats) == 0 {
			return voucherDescriptionFallback
		}
		return strings.Join(seats, ", ")
	default:
		return "Performance date: " + first.PerformanceDate.Format(performanceDateLayout) +
			"\nSeats: " + strings.Join(seats, ", ")
	}
}

func (g BasketGroup) spec(basketID string) LineItemSpec {
	meta := g.Key.Metadata()
	meta[models.MetaOrderItemID] = strconv.FormatInt(g.OrderItemID, 10)
	meta[models.MetaBasketID] = basketID
	return LineItemSpec{
		Quantity:    g.Quantity,
		Name:        g.Name,
		Description: g.Description,
		UnitAmount:  g.UnitAmount,
		Metadata:    meta,
	}
}

// NewLineItemSpecs renders groups for a session that has no items yet.
func NewLineItemSpecs(groups []BasketGroup, basketID string) []LineItemSpec {
	specs := make([]LineItemSpec, 0, len(groups))
	for _, g := range groups {
		specs = append(specs, g.spec(basketID))
	}
	return specs
}

// LineItemPlan is the full line item set a session should hold after
// reconciliation, plus what changed relative to the remote state.
type LineItemPlan struct {
	Items   []LineItemSpec
	Created int
	Updated int
	Removed int
	Kept    int
	Foreign int
}

func (p LineItemPlan) Changed() bool { return p.Created+p.Updated+p.Removed > 0 }

func (p LineItemPlan) Empty() bool { return len(p.Items) == 0 }

// PlanLineItems diffs the remote line items against the basket groups.
//
// A remote item belongs to this basket when its metadata carries a line item
// key and either names this basket or names none. Such an item takes the
// quantity of the matching group, or is dropped when that group is gone.
// Every other remote item is foreign and is passed through untouched. Groups
// with no remote item become new entries.
//
// With priceFallback set, an item without metadata is matched by unit amount,
// but only when exactly one unmatched group and exactly one such item share
// that amount.
func PlanLineItems(remote []RemoteLineItem, groups []BasketGroup, basketID string, priceFallback bool) LineItemPlan {
	byKey := make(map[models.LineItemKey]int, len(groups))
	for i, g := range groups {
		byKey[g.Key] = i
	}
	matched := make([]bool, len(groups))
	// decision per remote item: group index, -1 foreign, -2 removed
	decision := make([]int, len(remote))

	for i, item := range remote {
		decision[i] = -1
		key, ok := models.ParseLineItemKey(item.Metadata)
		if !ok {
			continue
		}
		if owner := item.Metadata[models.MetaBasketID]; owner != "" && owner != basketID {
			continue
		}
		if gi, found := byKey[key]; found && !matched[gi] {
			matched[gi] = true
			decision[i] = gi
		} else {
			decision[i] = -2
		}
	}

	if priceFallback {
		matchByUnitAmount(remote, groups, matched, decision)
	}

	var plan LineItemPlan
	for i, item := range remote {
		switch gi := decision[i]; {
		case gi == -2:
			plan.Removed++
		case gi == -1:
			plan.Foreign++
			plan.Items = append(plan.Items, LineItemSpec{ID: item.ID, Quantity: item.Quantity})
		default:
			want := groups[gi].Quantity
			if want != item.Quantity {
				plan.Updated++
			} else {
				plan.Kept++
			}
			plan.Items = append(plan.Items, LineItemSpec{ID: item.ID, Quantity: want})
		}
	}
	for gi, g := range groups {
		if !matched[gi] {
			plan.Created++
			plan.Items = append(plan.Items, g.spec(basketID))
		}
	}
	return plan
}

func matchByUnitAmount(remote []RemoteLineItem, groups []BasketGroup, matched []bool, decision []int) {
	groupsByAmount := make(map[int64][]int)
	for gi, g := range groups {
		if !matched[gi] {
			groupsByAmount[g.UnitAmount] = append(groupsByAmount[g.UnitAmount], gi)
		}
	}
	itemsByAmount := make(map[int64][]int)
	for i, item := range remote {
		if decision[i] == -1 && len(item.Metadata) == 0 {
			itemsByAmount[item.UnitAmount] = append(itemsByAmount[item.UnitAmount], i)
		}
	}
	for amount, items := range itemsByAmount {
		candidates := groupsByAmount[amount]
		if len(items) != 1 || len(candidates) != 1 {
			continue
		}
		matched[candidates[0]] = true
		decision[items[0]] = candidates[0]
	}
}

func voucherDiscount(applied []models.AppliedVoucher) *Discount {
	var total int64
	for _, a := range applied {
		total += models.ToMinor(a.Amount)
	}
	if total <= 0 {
		return nil
	}
	return &Discount{Name: voucherDiscountName, AmountMinor: total}
}

// capped limits the discount to limit minor units, dropping it when nothing
// is left to discount.
func (d *Discount) capped(limit int64) *Discount {
	if d == nil || limit <= 0 {
		return nil
	}
	if d.AmountMinor <= limit {
		return d
	}
	return &Discount{Name: d.Name, AmountMinor: limit}
}

func (d *Discount) minor() int64 {
	if d == nil {
		return 0
	}
	return d.AmountMinor
}
