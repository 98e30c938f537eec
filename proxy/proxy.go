// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// Package proxy is the development front end of the backend server.
//
// It has the following responsibilities:
// 1. Forward every request to the backend, adding the usual forwarding headers.
// 2. Inject the live reload client into HTML responses.
// 3. Serve the live reload socket, its script and the metrics of the launcher.
//
// Backend failures are answered per request with 502 Bad Gateway.
package proxy
