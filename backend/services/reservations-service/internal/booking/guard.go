package booking

import (
	"fmt"
	"strings"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// AuthorizeOperator enforces station assignment: the operator must be identified and,
// when the station lists operators, be one of them. An empty list leaves the station
// open to any authenticated operator.
func AuthorizeOperator(operatorID string, station *models.Station) error {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return fmt.Errorf("%w: operator identity is required", ErrUnauthorized)
	}
	if station == nil {
		return fmt.Errorf("%w: station is unknown", ErrUnauthorized)
	}
	if len(station.OperatorIDs) == 0 {
		return nil
	}
	for _, id := range station.OperatorIDs {
		if id == operatorID {
			return nil
		}
	}
	return fmt.Errorf("%w: operator %s is not assigned to station %s", ErrUnauthorized, operatorID, station.ID)
}
