// Package mongostore provides a hishel.Storage backend over MongoDB, via
// go.mongodb.org/mongo-driver. Each pair is one document in a single
// collection; headers and bodies are stored as raw bytes (BSON binary)
// rather than the SQL backends' byte-stream tables, matching how a
// document store is normally used.
package mongostore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/google/uuid"
	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
)

type document struct {
	ID           string      `bson:"_id"`
	CacheKey     string      `bson:"cache_key"`
	Method       string      `bson:"method"`
	URL          string      `bson:"url"`
	ReqHeader    []byte      `bson:"req_header"`
	ReqBody      []byte      `bson:"req_body"`
	Complete     bool        `bson:"complete"`
	StatusCode   int         `bson:"status_code"`
	RespHeader   []byte      `bson:"resp_header"`
	RespBody     []byte      `bson:"resp_body"`
	RequestTime  time.Time   `bson:"request_time"`
	ResponseTime time.Time   `bson:"response_time"`
	CreatedAt    time.Time   `bson:"created_at"`
	DeletedAt    *time.Time  `bson:"deleted_at,omitempty"`
}

// Store is a hishel.Storage backed by a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects to MongoDB using uri and returns a Store using
// database.collection for pair storage.
func Open(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to mongodb: %v", herrors.ErrStorage, err)
	}
	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "cache_key", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: creating index: %v", herrors.ErrStorage, err)
	}
	return &Store{client: client, coll: coll}, nil
}

func (s *Store) Close() error {
	if err := s.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	id := uuid.New()
	createdAt := time.Now()

	reqHeader, err := encodeHeader(req.Header)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	var reqBody []byte
	if req.Body != nil {
		reqBody, err = readAllAndClose(req.Body)
		if err != nil {
			return hishel.IncompletePair{}, fmt.Errorf("%w: reading request body: %v", herrors.ErrStorage, err)
		}
	}
	urlStr := ""
	if req.URL != nil {
		urlStr = req.URL.String()
	}

	doc := document{
		ID:        id.String(),
		CacheKey:  cacheKey,
		Method:    req.Method,
		URL:       urlStr,
		ReqHeader: reqHeader,
		ReqBody:   reqBody,
		CreatedAt: createdAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return hishel.IncompletePair{}, fmt.Errorf("%w: inserting document: %v", herrors.ErrStorage, err)
	}

	return hishel.IncompletePair{
		Pair: hishel.Pair{ID: id, Request: req, Meta: hishel.PairMeta{CreatedAt: createdAt}},
	}, nil
}

func (s *Store) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	var existing document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			return hishel.CompletePair{}, herrors.ErrNotFound
		}
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if existing.Complete {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}

	respHeader, err := encodeHeader(resp.Header)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	var respBody []byte
	if resp.Body != nil {
		respBody, err = readAllAndClose(resp.Body)
		if err != nil {
			return hishel.CompletePair{}, fmt.Errorf("%w: reading response body: %v", herrors.ErrStorage, err)
		}
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id.String(), "complete": false}, bson.M{"$set": bson.M{
		"complete":      true,
		"status_code":   resp.StatusCode,
		"resp_header":   respHeader,
		"resp_body":     respBody,
		"request_time":  resp.Metadata.RequestTime,
		"response_time": resp.Metadata.ResponseTime,
	}})
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: updating document: %v", herrors.ErrStorage, err)
	}
	if res.MatchedCount == 0 {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}
	return s.readPair(ctx, id)
}

func (s *Store) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"cache_key": cacheKey, "complete": true, "deleted_at": bson.M{"$exists": false}},
		options.Find().SetSort(bson.D{{Key: "response_time", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer cur.Close(ctx)

	var pairs []hishel.CompletePair
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		pair, err := doc.toCompletePair()
		if err != nil {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (s *Store) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	current, err := s.readPair(ctx, id)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	updated, err := fn(current)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if updated.ID != id {
		return hishel.CompletePair{}, herrors.ErrIDMismatch
	}

	respHeader, err := encodeHeader(updated.Response.Header)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	var respBody []byte
	if updated.Response.Body != nil {
		respBody, err = readAllAndClose(updated.Response.Body)
		if err != nil {
			return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
	}

	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"status_code":   updated.Response.StatusCode,
		"resp_header":   respHeader,
		"resp_body":     respBody,
		"request_time":  updated.Response.Metadata.RequestTime,
		"response_time": updated.Response.Metadata.ResponseTime,
	}})
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return s.readPair(ctx, id)
}

func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"deleted_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) Cleanup(ctx context.Context) error {
	deadline := time.Now().Add(-hishel.HardDeleteGrace)
	if _, err := s.coll.DeleteMany(ctx, bson.M{"deleted_at": bson.M{"$lt": deadline}}); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	staleIncomplete := time.Now().Add(-time.Hour)
	if _, err := s.coll.DeleteMany(ctx, bson.M{"complete": false, "created_at": bson.M{"$lt": staleIncomplete}}); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) readPair(ctx context.Context, id uuid.UUID) (hishel.CompletePair, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return doc.toCompletePair()
}

func (d document) toCompletePair() (hishel.CompletePair, error) {
	if !d.Complete {
		return hishel.CompletePair{}, herrors.ErrCorrupt
	}
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: bad pair id: %v", herrors.ErrStorage, err)
	}
	reqHeader, err := decodeHeader(d.ReqHeader)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	respHeader, err := decodeHeader(d.RespHeader)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	var parsedURL *url.URL
	if d.URL != "" {
		parsedURL, _ = url.Parse(d.URL)
	}

	return hishel.CompletePair{
		Pair: hishel.Pair{
			ID: id,
			Request: hishel.Request{
				Method: d.Method,
				URL:    parsedURL,
				Header: reqHeader,
				Body:   newNopBody(d.ReqBody),
			},
			Meta: hishel.PairMeta{CreatedAt: d.CreatedAt, DeletedAt: d.DeletedAt},
		},
		CacheKey: d.CacheKey,
		Response: hishel.Response{
			StatusCode: d.StatusCode,
			Header:     respHeader,
			Body:       newNopBody(d.RespBody),
			Metadata: hishel.ResponseMetadata{
				RequestTime:  d.RequestTime,
				ResponseTime: d.ResponseTime,
			},
		},
	}, nil
}

var _ hishel.Storage = (*Store)(nil)
