// Package observatory provides a job-admission layer for long-running remote
// validation tests: clients submit a named test suite plus target
// parameters; the service admits it under a global concurrency ceiling,
// rejects exact duplicates already in flight, tracks each submission through
// its lifecycle and exposes real-time status.
//
// The observatory is designed to be embedded in host applications.
// End-users typically interact with it via the high-level Service façade
// exposed by the root package:
//
//	srv := observatory.New(observatory.WithMaxConcurrentTests(5))
//	outcome, _ := srv.Submit(ctx, &model.Request{
//		TestSuite:     "TestMock",
//		DeploymentURL: "https://llm.example.com",
//		APIKey:        "sk-...",
//		Models:        []string{"gpt-4"},
//	})
//	status, _ := srv.Status(ctx)
//
// An HTTP front-end for the façade lives in the gateway package; a runnable
// daemon in cmd/observatory.
package observatory
