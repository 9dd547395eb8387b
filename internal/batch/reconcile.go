package batch

import (
	"caldigest/internal/types"
)

// Reconcile regroups the batched fetch results by recipient email. A
// recipient appearing in multiple groups (multi-calendar) accumulates one
// CalendarSource per succeeding group and one DeliveryError per failing
// group. Output order is first appearance across groups, so the delivery
// queue later preserves recipient-processing order.
//
// Failure semantics: a recipient with every source failed ends up with no
// CalendarSources and HasErrors set, routing it to the error-notice path.
// A recipient with a mix of outcomes still gets a normal digest built only
// from the succeeding sources; its failures are recorded but non-fatal.
func Reconcile(set *FetchSet) []*types.RecipientDelivery {
	byEmail := make(map[string]*types.RecipientDelivery)
	var deliveries []*types.RecipientDelivery

	for _, key := range set.Keys() {
		result := set.Result(key)

		for _, rec := range result.Recipients {
			delivery, ok := byEmail[rec.Email]
			if !ok {
				delivery = &types.RecipientDelivery{
					Recipient: rec,
					Interval:  result.Interval,
				}
				byEmail[rec.Email] = delivery
				deliveries = append(deliveries, delivery)
			}

			if result.Success {
				delivery.CalendarSources = append(delivery.CalendarSources, types.CalendarSource{
					CalendarName: result.CalendarName,
					Events:       result.Events,
					Succeeded:    true,
				})
			} else {
				delivery.HasErrors = true
				delivery.Errors = append(delivery.Errors, types.DeliveryError{
					CalendarID: rec.CalendarID,
					Message:    result.ErrorMessage,
				})
			}
		}
	}

	return deliveries
}
