package handlers

import (
	"time"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/service/monitor"
)

func toLocationDTO(l domain.Location) locationDTO {
	return locationDTO{Lat: l.Lat, Lng: l.Lng}
}

func toOrderDTO(o *domain.Order) orderDTO {
	history := make([]historyEntryDTO, 0, len(o.ReassignmentHistory))
	for _, e := range o.ReassignmentHistory {
		history = append(history, historyEntryDTO{
			FromDriverID: e.FromDriverID,
			ToDriverID:   e.ToDriverID,
			Reason:       e.Reason,
			Timestamp:    e.Timestamp,
		})
	}
	return orderDTO{
		ID:                  o.ID,
		ServiceClass:        o.ServiceClass,
		Status:              o.Status,
		CreatedAt:           o.CreatedAt,
		AssignedDriverID:    o.AssignedDriverID,
		PickupLocation:      toLocationDTO(o.PickupLocation),
		DeliveryLocation:    toLocationDTO(o.DeliveryLocation),
		AtRiskSince:         o.AtRiskSince,
		ReassignmentHistory: history,
	}
}

func toCycleDTO(s domain.CycleSummary) cycleDTO {
	return cycleDTO{
		StartedAt:     s.StartedAt,
		DurationMS:    s.Duration.Milliseconds(),
		Evaluated:     s.Evaluated,
		AtRisk:        s.AtRisk,
		Reassignments: s.Reassignments,
		Escalations:   s.Escalations,
		Breaches:      s.Breaches,
		Failures:      s.Failures,
		DeadlineHit:   s.DeadlineHit,
	}
}

func toStatusDTO(s domain.SLAStatus) statusDTO {
	byTier := s.ByTier
	if byTier == nil {
		byTier = map[string]int{}
	}
	return statusDTO{
		Status:              s.State,
		ActiveDeliveries:    s.Active,
		AtRisk:              s.AtRisk,
		Breached:            s.Breached,
		ByTier:              byTier,
		Unevaluable:         s.Unevaluable,
		AvgElapsedMinutes:   s.AvgElapsedMinutes,
		MinRemainingMinutes: s.MinRemainingMinutes,
		Timestamp:           s.Timestamp,
	}
}

func toEscalationDTOs(list []monitor.Escalation) []escalationDTO {
	out := make([]escalationDTO, 0, len(list))
	for _, e := range list {
		out = append(out, escalationDTO{
			Order:         toOrderDTO(e.Order),
			Reason:        e.Reason,
			Attempts:      e.Attempts,
			EscalatedAt:   timePtr(e.EscalatedAt),
			LastAttemptAt: timePtr(e.LastAttemptAt),
		})
	}
	return out
}

func toReassignmentDTO(rec domain.ReassignmentRecord) reassignmentDTO {
	return reassignmentDTO{
		ID:           rec.ID,
		OrderID:      rec.OrderID,
		FromDriverID: rec.FromDriverID,
		ToDriverID:   rec.ToDriverID,
		Reason:       rec.Reason,
		Timestamp:    rec.Timestamp,
		HistoryIndex: rec.HistoryIndex,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toDriverDTO(d *domain.Driver) driverDTO {
	active := d.ActiveOrderIDs
	if active == nil {
		active = []string{}
	}
	return driverDTO{
		ID:                    d.ID,
		Name:                  d.Name,
		Status:                d.Status,
		CurrentLocation:       toLocationDTO(d.CurrentLocation),
		ActiveOrderIDs:        active,
		DailyDeliveryCount:    d.DailyDeliveryCount,
		DailyTargetCount:      d.DailyTargetCount,
		OnTimeRate:            d.OnTimeRate,
		ConsecutiveDeliveries: d.ConsecutiveDeliveries,
	}
}
