package tabsync

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

func tabEvent(t *testing.T, typ enums.ChangeType, tab models.CustomerTab) realtime.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(tab)
	require.NoError(t, err)
	event := realtime.ChangeEvent{ID: uuid.New(), Table: enums.TableCustomerTabs, Type: typ, CommitTimestamp: time.Now()}
	if typ == enums.ChangeDelete {
		event.Old = raw
	} else {
		event.New = raw
	}
	return event
}
