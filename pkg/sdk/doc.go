// Package nearby embeds the nearby provider search index in a Go process.
//
// The client runs the same projection and search services as the HTTP server,
// backed by Redis (Query Engine with GEO fields) or an embedded SQLite file.
//
//	client, _ := nearby.New(ctx, nearby.WithSQLite("data/nearby.db"))
//	defer client.Close()
//
//	_, _ = client.Apply(ctx, nearby.Event{
//	    ProviderID: "p-1", Sequence: 1, OccurredAt: time.Now(),
//	    Payload: nearby.Activated{Name: "Acme Plumbing", Location: &nearby.Point{Lat: 51.5, Lon: -0.12}},
//	})
//
//	page, _ := client.Search(ctx, nearby.Near(51.5, -0.12, 10).Services("plumbing").Page(0, 20))
package nearby
