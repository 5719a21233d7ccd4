package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/fusego"
	"github.com/hupe1980/fusego/blobstore"
	s3store "github.com/hupe1980/fusego/blobstore/s3"
	"github.com/hupe1980/fusego/hnsw"
	"github.com/hupe1980/fusego/persistence"
)

func main() {
	bucket := flag.String("bucket", "", "optional S3 bucket for snapshot storage (defaults to a local directory)")
	dir := flag.String("dir", "./data", "local snapshot directory when no bucket is given")
	flag.Parse()

	ctx := context.Background()

	retriever, err := fusego.New(3, fusego.WithLogger(fusego.NewTextLogger(0)))
	if err != nil {
		log.Fatal(err)
	}

	docs := []fusego.Document{
		{ID: "espresso", Text: "a short strong shot of coffee", Vector: []float32{1, 0, 0}},
		{ID: "latte", Text: "espresso with steamed milk", Vector: []float32{0.8, 0.2, 0}},
		{ID: "matcha", Text: "green tea whisked with water", Vector: []float32{0, 1, 0}},
		{ID: "chai", Text: "spiced black tea with milk", Vector: []float32{0, 0.8, 0.2}},
	}

	if _, err := retriever.AddBatch(ctx, docs); err != nil {
		log.Fatal(err)
	}

	results, err := retriever.Search(ctx, fusego.Query{
		Text:   "coffee with milk",
		Vector: []float32{0.9, 0.1, 0},
	}, 3)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Hybrid search: coffee with milk ---")
	for i, r := range results {
		fmt.Printf("%d. %-8s score=%.3f vector=%.3f keyword=%.3f source=%s\n",
			i+1, r.ID, r.Score, r.VectorScore, r.KeywordScore, r.Source)
	}

	// Snapshot the vector index through a blob store.
	var store blobstore.Store

	if *bucket != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal(err)
		}

		store = s3store.NewStore(awss3.NewFromConfig(cfg), *bucket, "fusego-example/")
	} else {
		store = blobstore.NewLocalStore(*dir)
	}

	manager := persistence.NewManager(store)

	name := persistence.SnapshotName(time.Now())
	if err := manager.Save(ctx, name, retriever.VectorIndex().Export()); err != nil {
		log.Fatal(err)
	}

	if err := manager.Commit(ctx, name); err != nil {
		log.Fatal(err)
	}

	snapshot, err := manager.LoadCurrent(ctx)
	if err != nil {
		log.Fatal(err)
	}

	restored, err := hnsw.FromSnapshot(snapshot)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nsnapshot %s restored: %d vectors\n", name, restored.Len())
}
