// Package httpclient provides a small HTTP client that sends one request
// per call, through a proxy chosen by the caller, and classifies failures
// as transient or permanent for the retry policy.
//
// It is meant to run under a fetch.Orchestrator:
//
//	client, _ := httpclient.New(httpclient.Config{BaseURL: "https://www.reddit.com"})
//	o, _ := fetch.New[*httpclient.Response](ctx, cfg)
//
//	req := httpclient.Request{Path: "/r/golang/hot.json", Query: map[string]string{"limit": "25"}}
//	resp, err := o.Fetch(ctx, fetch.Request{
//		Class: "listing",
//		Key:   o.Key([]any{"r", "golang", "hot"}, nil),
//	}, client.Operation(req))
package httpclient
