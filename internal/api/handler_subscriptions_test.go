package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-street-backend/internal/model"
)

const endpoint = "https://push.example.com/sub/abc"

func TestPutSubscription(t *testing.T) {
	ts := newTestServer(t, nil)
	vendor := sessionToken(t, "user-1", "VENDOR")

	w := ts.do(t, http.MethodPut, "/api/subscriptions", vendor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/api/subscriptions", "", `{"endpoint":"`+endpoint+`","p256dh":"k","auth":"a"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPut, "/api/subscriptions", vendor, `{"endpoint":"`+endpoint+`","p256dh":"k","auth":"a"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var sub model.PushSubscription
	require.NoError(t, ts.db.Take(&sub, "endpoint = ?", endpoint).Error)
	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, "k", sub.P256DH)
}

func TestSubscriptionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	vendor := sessionToken(t, "user-1", "VENDOR")
	other := sessionToken(t, "user-2", "VENDOR")
	query := "/api/subscriptions?endpoint=" + url.QueryEscape(endpoint)

	w := ts.do(t, http.MethodPut, "/api/subscriptions", vendor, `{"endpoint":"`+endpoint+`","p256dh":"k","auth":"a"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, query, vendor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, endpoint, decodeBody(t, w)["endpoint"])

	w = ts.do(t, http.MethodGet, query, other, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions", vendor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", other, `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", vendor, `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, query, vendor, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t, nil)
	vendor := sessionToken(t, "user-1", "VENDOR")
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rows := []model.Notification{
		{UserID: "user-1", Kind: "REQUEST_APPROVED", Payload: `{"request_id":"r1"}`, CreatedAt: base},
		{UserID: "user-1", Kind: "PERMIT_ISSUED", Payload: `{"request_id":"r1","permit_id":"p1"}`, CreatedAt: base.Add(time.Second)},
		{UserID: "user-2", Kind: "REQUEST_REJECTED", Payload: `{"request_id":"r2","remarks":null}`, CreatedAt: base},
	}
	require.NoError(t, ts.db.Create(&rows).Error)

	w := ts.do(t, http.MethodGet, "/api/notifications", vendor, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []model.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "PERMIT_ISSUED", listed[0].Kind)
	assert.Equal(t, "REQUEST_APPROVED", listed[1].Kind)

	w = ts.do(t, http.MethodPost, "/api/notifications/"+strconv.FormatInt(rows[0].ID, 10)+"/read", vendor, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	var stored model.Notification
	require.NoError(t, ts.db.First(&stored, rows[0].ID).Error)
	assert.True(t, stored.Read)

	w = ts.do(t, http.MethodPost, "/api/notifications/"+strconv.FormatInt(rows[2].ID, 10)+"/read", vendor, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/notifications/abc/read", vendor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
