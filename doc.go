// Package otree provides an embedded adaptive sampling index for
// append-only tabular data.
//
// The index maps each row to a cell ("cube") of a hierarchical partition
// of the normalized column space, keyed by a per-row pseudo-random
// weight. A cube's retained rows form a bounded-size, statistically
// unbiased sample of everything beneath it, which makes two things cheap
// that a plain columnar layout cannot do: sampling reads that skip most
// files, and incremental rebalancing that bounds read amplification as
// the table grows.
//
// # Quick start
//
//	store, _ := blobstore.NewLocalStore("./data")
//	ot, err := otree.New("events", store, txlog.NewMemLog(),
//	    otree.WithColumns(
//	        space.Transformer{Column: "user_id", Type: core.FieldTypeInt},
//	        space.Transformer{Column: "ts", Type: core.FieldTypeInt},
//	    ),
//	    otree.WithDesiredCubeSize(100000),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer ot.Close()
//
//	if err := ot.Append(ctx, schema, rows); err != nil {
//	    panic(err)
//	}
//
// Rebalancing runs as separate passes:
//
//	announced, _ := ot.Analyze(ctx)
//	for _, c := range announced {
//	    if err := ot.Optimize(ctx, c); err != nil {
//	        panic(err)
//	    }
//	}
//
// Sampling reads prune files through the query package:
//
//	files, _ := ot.Files(ctx, query.SampleFraction(0.01))
//
// Multiple processes writing the same table need a shared metadata log;
// see txlog/dynamo.
package otree
