// Package icontrol is a client for the F5 BIG-IP iControl REST API.
//
// Requests go to https://<host>/mgmt/tm/... with HTTP Basic authentication
// and JSON bodies. A request succeeds only with status 200; any other status
// is returned as an *APIError carrying the device's code and message.
//
// # Basic usage
//
//	client, err := icontrol.New("10.0.0.245", "admin", password)
//	if err != nil {
//	    return err
//	}
//
//	dns, err := client.Get(ctx, "/mgmt/tm/sys/dns")
//
// # Operation names
//
// Call turns an operation name into a request. The first token is the verb,
// the remaining tokens are the resource path:
//
//	client.Call(ctx, "get_sys_dns")                         // GET  /mgmt/tm/sys/dns
//	client.Call(ctx, "post_ltm_pool", icontrol.WithBody(p)) // POST /mgmt/tm/ltm/pool
//
// # Retries
//
// Transport errors and malformed JSON responses are retried up to
// ClientConfig.MaxAttempts times. A malformed body usually means the device's
// configuration utility is still starting, so the client waits NotReadyWait
// (30 seconds by default) before the next attempt. Non-200 responses are never
// retried.
//
// # Settling delay
//
// ClientConfig.PostRequestDelay inserts a pause after every completed request,
// which gives the device time to apply configuration changes between calls.
package icontrol
