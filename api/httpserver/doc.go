// Package httpserver provides the HTTP server shared by coordinator binaries.
//
// BaseServer wires a chi router with request ids, real-ip resolution, panic
// recovery and structured request logs (flashbots/go-utils/httplogger), and
// adds standard health endpoints:
//
//   - /livez: the process is up
//   - /readyz: the server accepts traffic; 503 after a drain
//   - /drain, /undrain: toggle readiness ahead of a shutdown
//   - /debug/pprof: when EnablePprof is set
//
// Components contribute their own endpoints through RouteRegistrar:
//
//	func (h *MyHandler) RegisterRoutes(r chi.Router) {
//	    r.Post("/mail", h.handleMail)
//	}
//
//	srv, err := httpserver.New(cfg, handler)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
