package qdrant

import (
	"context"
	"fmt"
	"sort"

	"docassist-be/pkg/vectorstore"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadText       = "text"
	payloadMetadata   = "metadata"
	payloadAccessList = "user_access_list"

	scrollPageSize = 256
)

// Store implements vectorstore.Provider on a Qdrant collection. The point id is the
// DMS document id.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

var (
	_ vectorstore.Provider = (*Store)(nil)
	_ vectorstore.IDLister = (*Store)(nil)
)

func NewStore(host string, port int, collection string) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return NewStoreFromConn(conn, collection), nil
}

func NewStoreFromConn(conn *grpc.ClientConn, collection string) *Store {
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
}

func (s *Store) Name() string {
	return "qdrant"
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates a cosine collection of the given width, plus an integer
// index on the access list, when the collection does not exist yet.
func (s *Store) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("qdrant: collection exists: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(dimensions),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection: %w", err)
	}

	wait := true
	_, err = s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           &wait,
		FieldName:      payloadAccessList,
		FieldType:      pb.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create access list index: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc *vectorstore.IndexedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", vectorstore.ErrIndex)
	}

	access := make([]*pb.Value, len(doc.AccessList))
	for i, id := range doc.AccessList {
		access[i] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: id}}
	}

	metadata, err := toStruct(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: document %d metadata: %v", vectorstore.ErrIndex, doc.DocumentID, err)
	}

	wait := true
	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      pointID(doc.DocumentID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: doc.Embedding}}},
			Payload: map[string]*pb.Value{
				payloadText:       {Kind: &pb.Value_StringValue{StringValue: doc.Text}},
				payloadMetadata:   {Kind: &pb.Value_StructValue{StructValue: metadata}},
				payloadAccessList: {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: access}}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: upsert document %d: %v", vectorstore.ErrIndex, doc.DocumentID, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]vectorstore.SearchHit, error) {
	topK = vectorstore.NormalizeTopK(topK)

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		Filter: &pb.Filter{Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   payloadAccessList,
				Match: &pb.Match{MatchValue: &pb.Match_Integer{Integer: userID}},
			}},
		}}},
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrSearch, err)
	}

	hits := make([]vectorstore.SearchHit, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		payload := pt.GetPayload()
		hits = append(hits, vectorstore.SearchHit{
			DocumentID: int64(pt.GetId().GetNum()),
			Text:       payload[payloadText].GetStringValue(),
			Metadata:   fromStruct(payload[payloadMetadata].GetStructValue()),
			// Qdrant reports cosine similarity; callers expect a distance.
			Distance: 1 - float64(pt.GetScore()),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

func (s *Store) Delete(ctx context.Context, documentID int64) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(documentID)}},
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: delete document %d: %v", vectorstore.ErrIndex, documentID, err)
	}
	return nil
}

func (s *Store) IndexedIDs(ctx context.Context) ([]int64, error) {
	var (
		ids    []int64
		offset *pb.PointId
		limit  = uint32(scrollPageSize)
	)
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false}},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll: %v", vectorstore.ErrSearch, err)
		}
		for _, pt := range resp.GetResult() {
			ids = append(ids, int64(pt.GetId().GetNum()))
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func pointID(documentID int64) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(documentID)}}
}
