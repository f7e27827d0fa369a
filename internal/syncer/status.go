// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package syncer

// statusInfo classifies a remote response. "Successful" means the outcome is
// expected and handled, not that the operation changed anything: 304, 404 and
// 412 are all successful outcomes of a correctly functioning sync.
type statusInfo struct {
	Successful      bool
	Conflict        bool
	UnAuth          bool
	NotFound        bool
	Changed         bool
	NetworkProblems bool
}

// interpretStatus maps a transport result to a statusInfo. A non-nil err
// means the request failed below the HTTP layer, which the engine treats as
// temporary network trouble. impliedAuth suppresses the fatal reading of
// auth failures for backends addressed without a real token.
func interpretStatus(statusCode int, err error, impliedAuth bool) statusInfo {
	if err != nil {
		return statusInfo{NetworkProblems: true}
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return statusInfo{Successful: true, Changed: true}
	case statusCode == 304:
		return statusInfo{Successful: true}
	case statusCode == 404:
		return statusInfo{Successful: true, NotFound: true, Changed: true}
	case statusCode == 412:
		return statusInfo{Successful: true, Conflict: true, Changed: true}
	case statusCode == 401 || statusCode == 402 || statusCode == 403:
		return statusInfo{UnAuth: !impliedAuth}
	default:
		return statusInfo{}
	}
}
