package tablesync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/dinein-backend/pkg/db/models"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func orderEvent(t *testing.T, typ enums.ChangeType, order models.Order) realtime.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(order)
	require.NoError(t, err)
	event := realtime.ChangeEvent{ID: uuid.New(), Table: enums.TableOrders, Type: typ, CommitTimestamp: time.Now()}
	if typ == enums.ChangeDelete {
		event.Old = raw
	} else {
		event.New = raw
	}
	return event
}
