// Package http provides the REST API of the filegate file gateway.
//
// It exposes upload, download, list, info and delete under /api/v1/files,
// streams request and response bodies straight between the client and the
// object store, and maps gateway errors onto HTTP statuses.
//
// # Routes
//
//	POST   /api/v1/files/upload          multipart/form-data, field "file"   201
//	GET    /api/v1/files/download/{key}  object content as an attachment     200
//	GET    /api/v1/files                 JSON array of objects               200
//	GET    /api/v1/files/{key}/info      object metadata                     200
//	DELETE /api/v1/files/{key}           {"key": ..., "deleted": true}       200
//	GET    /health                       {"status": "ok" | "degraded"}       200/503
//	GET    /metrics                      Prometheus exposition (optional)
//
// Keys are decoded from the escaped request path and validated before the
// service is called, so "..%2Fsecret" is rejected rather than routed.
//
// # Errors
//
// Every failure returns JSON of the form
//
//	{"error": "not_found", "message": "Object not found"}
//
// with error kinds not_found (404), already_exists (409),
// size_limit_exceeded (413), invalid_request (400), store_unavailable (503)
// and internal_error (500). Once a download has started streaming, a failure
// only terminates the connection. Requests abandoned by the client get no
// response body at all.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    MaxUploadSize: gw.MaxUploadSize(),
//	    CORS:          http.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
//	    Metrics:       metrics.New(),
//	}
//	handler := http.NewHandler(&handlerCfg, gw)
//	http.ListenAndServe(":8080", handler.Router())
//
// The service parameter must implement the Service interface; *filegate.Gateway does.
package http
