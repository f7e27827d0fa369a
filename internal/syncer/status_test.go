package syncer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretStatus(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		err         error
		impliedAuth bool
		want        statusInfo
	}{
		{"200 ok", 200, nil, false, statusInfo{Successful: true, Changed: true}},
		{"201 created", 201, nil, false, statusInfo{Successful: true, Changed: true}},
		{"304 unchanged", 304, nil, false, statusInfo{Successful: true}},
		{"404 missing", 404, nil, false, statusInfo{Successful: true, NotFound: true, Changed: true}},
		{"412 conflict", 412, nil, false, statusInfo{Successful: true, Conflict: true, Changed: true}},
		{"401 unauthorized", 401, nil, false, statusInfo{UnAuth: true}},
		{"402 payment required", 402, nil, false, statusInfo{UnAuth: true}},
		{"403 forbidden", 403, nil, false, statusInfo{UnAuth: true}},
		{"401 with implied auth", 401, nil, true, statusInfo{}},
		{"500 server error", 500, nil, false, statusInfo{}},
		{"network failure", 0, errors.New("dial tcp: refused"), false, statusInfo{NetworkProblems: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interpretStatus(tt.statusCode, tt.err, tt.impliedAuth))
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(statusInfo{Successful: true, Changed: true}))
	assert.Equal(t, "unchanged", outcome(statusInfo{Successful: true}))
	assert.Equal(t, "conflict", outcome(statusInfo{Successful: true, Conflict: true, Changed: true}))
	assert.Equal(t, "network_error", outcome(statusInfo{NetworkProblems: true}))
	assert.Equal(t, "unauthorized", outcome(statusInfo{UnAuth: true}))
	assert.Equal(t, "error", outcome(statusInfo{}))
}
