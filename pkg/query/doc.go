/*
Package query answers resource queries against a configuration snapshot,
optionally enriched with live data gathered from the nodes.

# Field Registries

Each resource kind (node, group, instance) has a FieldMap that maps a field
name to its definition and getter. Getters come in three kinds:

	simple    reads the object itself (name, uuid, tags)
	config    needs the whole snapshot (role, pinst_cnt, node_list)
	runtime   needs live data (cpu_total, mem_free, oper_state, status)

Requesting a field that is not registered is not an error: the column gets
a definition of kind "unknown" and every cell reports RSUnknown.

# Filters

Filters travel in the list-based form

	["&", ["?", "master_candidate"], [">", "cpu_total", 4]]

and are compiled against a registry before any item is looked at, so an
unknown field or a type mismatch fails the whole query with a FilterError.

# Execution

	snapshot items (natural name order)
	        │
	        ▼
	pre-filter: runtime leaves evaluate to "unknown"; only items whose
	filter is definitely false are dropped
	        │
	        ▼
	live collection, only if a selected field or the filter needs it;
	offline nodes are never contacted and each node is asked once
	        │
	        ▼
	final filter with live data, then one row per item

Collection failures never fail a query. They surface per cell as RSNoData,
RSOffline, or RSUnavail when live data is disabled.
*/
package query
