// Package entityfilter serves entity collections over Apache Arrow Flight
// and lets clients narrow them down with serializable filter trees.
//
// A filter (package filter) is a tree of property/operator/value leaves
// joined by And, Or and Not. The server compiles it against the entity type
// of the target collection (package predicate) into a typed predicate that
// either evaluates in memory over Arrow record batches or is pushed down to
// DuckDB as SQL.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "net"
//
//	    "github.com/apache/arrow-go/v18/arrow"
//	    "github.com/apache/arrow-go/v18/arrow/array"
//	    "github.com/apache/arrow-go/v18/arrow/memory"
//	    "google.golang.org/grpc"
//
//	    "github.com/hugr-lab/entityfilter"
//	    "github.com/hugr-lab/entityfilter/catalog"
//	)
//
//	func main() {
//	    userSchema := arrow.NewSchema([]arrow.Field{
//	        {Name: "id", Type: arrow.PrimitiveTypes.Int64},
//	        {Name: "name", Type: arrow.BinaryTypes.String},
//	    }, nil)
//
//	    scanUsers := func(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
//	        builder := array.NewRecordBuilder(memory.DefaultAllocator, userSchema)
//	        defer builder.Release()
//	        builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
//	        builder.Field(1).(*array.StringBuilder).AppendValues([]string{"Alice", "Bob", "Charlie"}, nil)
//	        record := builder.NewRecordBatch()
//	        defer record.Release()
//	        return array.NewRecordReader(userSchema, []arrow.RecordBatch{record})
//	    }
//
//	    cat, _ := entityfilter.NewCatalogBuilder().
//	        Schema("main").
//	            StaticCollection(entityfilter.StaticCollectionDef{
//	                Name:     "users",
//	                Schema:   userSchema,
//	                ScanFunc: scanUsers,
//	            }).
//	        Build()
//
//	    config := entityfilter.ServerConfig{Catalog: cat}
//	    grpcServer := grpc.NewServer(entityfilter.ServerOptions(config)...)
//	    srv, err := entityfilter.NewServer(grpcServer, config)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer srv.Close()
//	    lis, _ := net.Listen("tcp", ":50051")
//	    grpcServer.Serve(lis)
//	}
//
// # Queries
//
// Clients call GetFlightInfo with a CMD descriptor holding a JSON or
// MessagePack query:
//
//	{"schema": "main", "collection": "users", "columns": ["id"], "limit": 10,
//	 "filter": {"logicalOperator": "And", "expressions": [
//	     {"property": "name", "expressionType": "Contains", "value": "ali"}]}}
//
// and DoGet with the returned ticket. A filter that cannot be compiled
// fails GetFlightInfo with InvalidArgument or FailedPrecondition.
//
// # Server Lifecycle
//
// The package registers Flight service handlers on a user-provided
// grpc.Server but does NOT manage its lifecycle. Close the returned handler
// after the gRPC server has stopped.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on
// RecordReaders returned by scans and on records they create.
package entityfilter
