package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

func TestFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(model.HubStats{
			NodeID:           "n1",
			TotalConnections: 2,
			Rooms:            []model.RoomStats{{RoomID: "7", Sockets: 2, OpenSockets: 1}},
		})
	}))
	defer srv.Close()

	st, err := fetchStats(context.Background(), srv.Client(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "n1", st.NodeID)
	assert.Equal(t, 2, st.TotalConnections)
	require.Len(t, st.Rooms, 1)
	assert.Equal(t, 1, st.Rooms[0].OpenSockets)

	_, err = fetchStats(context.Background(), srv.Client(), srv.URL+"/nope")
	assert.Error(t, err)
}
