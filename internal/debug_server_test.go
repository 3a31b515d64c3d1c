package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDefaultMapper(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	row := DefaultMapper("due:"+"0000000001777626000.000000000"+":reminder-T1", []byte("reminder-T1"))

	req.Equal("due", row.Type)
	req.Equal("reminder-T1", row.EntityID)
	req.Equal(at.Format(time.RFC3339), row.Timestamp)

	row = DefaultMapper("room:2:u1:p1", nil)
	req.Equal("room", row.Type)
	req.Equal("p1", row.EntityID)
	req.Equal("-", row.Timestamp)
}

func TestInspectHandler(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	req.NoError(db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{"job:a", "job:b", "room:2:u1:p1"} {
			if err := txn.Set([]byte(key), []byte("x")); err != nil {
				return err
			}
		}
		return nil
	}))

	rec := httptest.NewRecorder()
	InspectHandler(db, nil)(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect?limit=1", nil))

	req.Equal(http.StatusOK, rec.Code)
	var page inspectPage
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Equal("job:", page.Prefix)
	req.Len(page.Items, 1)
	req.Equal("job:a", page.Items[0].Key)
}
