// Package archive embeds the archive search engine in a Go process.
//
// The client keeps a BM25 index and an embedding store in memory, persists
// embeddings to the configured store, and answers keyword and semantic
// queries with the same access rules as the HTTP service.
//
//	client, _ := archive.New(ctx,
//	    archive.WithBadger("./data"),
//	    archive.WithHashEmbedder(256),
//	)
//	defer client.Close()
//
//	_ = client.Bootstrap(ctx, entities)
//	page, _ := client.KeywordSearch(ctx, archive.Query{Text: "graph"}, false)
//	hits, _ := client.SemanticSearch(ctx, archive.Query{Text: "图神经网络"}, false)
//
// Writers call OnEntityChanged and OnEntityDeleted. Embeddings are computed
// asynchronously when WithAsync is set; Drain waits for them.
package archive
