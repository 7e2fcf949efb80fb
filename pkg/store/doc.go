// Package store is the Result Store: campaigns, their append-only action
// results and the connected-account registry.
//
// SQLiteStore is the durable implementation used by the CLI; MemoryStore
// backs tests and dry runs. Both assign every result a per-campaign
// Sequence, and results of one campaign are always listed in that order.
// Subscribe delivers new results to in-process listeners as they are
// appended.
//
// Basic Usage:
//
//	st, err := store.OpenSQLite("linkreach.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	results, err := st.ListResults(ctx, store.ResultFilter{CampaignID: id, NewestFirst: true, Limit: 20})
package store
