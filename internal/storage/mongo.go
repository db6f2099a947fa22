package storage

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 10 * time.Second

// ConnectMongo dials and pings MongoDB. Atlas (SRV or tls=true URIs) is
// pinned to TLS 1.2; some hosts fail the handshake otherwise with
// "remote error: tls: internal error".
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	opts := options.Client().ApplyURI(uri)
	if strings.HasPrefix(uri, "mongodb+srv://") || strings.Contains(uri, "tls=true") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client.Database(dbName), nil
}

// watchCollection turns a change stream into coalesced signals.
func watchCollection(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) (<-chan struct{}, error) {
	cs, err := coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}
