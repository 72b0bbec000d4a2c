// Package wapi is a client-side access layer for a single web API. It turns
// request descriptions into HTTP exchanges and keeps the request lifecycle
// bookkeeping out of calling code:
//
//   - Asynchronous execution, one goroutine per network exchange
//   - Duplicate suppression for identical requests already in flight
//   - In-memory response caching by content name and per-request lifetime
//   - Content invalidation with listener notification
//   - Middleware chain on the default net/http transport
//   - Prometheus metrics and lightweight structured debug logging
//
// A request is any value implementing Request. Its method, path, URL
// parameters and form body make up the resource identity used for both
// caching and duplicate suppression; URL parameters are sorted so the
// identity does not depend on insertion order.
//
// Typical usage:
//
//	client := wapi.New("https://api.example.com/",
//	    wapi.WithCache(),
//	    wapi.WithTimeout(10*time.Second),
//	)
//	req := wapi.NewSimpleRequest("items")
//	req.Content = "items"
//	req.TTL = time.Minute
//	if _, err := client.StartRequest(req); err != nil {
//	    return err
//	}
//	if err := req.Wait(ctx); err != nil {
//	    return err
//	}
//	fmt.Println(req.Response().StatusCode)
//
// Outcomes arrive only through Complete or Fail. A cache hit and a network
// response look the same to the request; a 404 is a response, not a failure.
// A request dropped as a duplicate receives no callback at all.
package wapi
