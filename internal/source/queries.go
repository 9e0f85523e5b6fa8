package source

// Labels and relationship types cannot be bound as parameters in Cypher, so
// the scan queries are format strings taking the (already discovered, so
// trusted) label or type name. Pagination and tenant filters bind normally.

const (
	ListLabelsQuery = `CALL db.labels()`

	ListRelationshipTypesQuery = `CALL db.relationshipTypes()`

	CountNodesQuery = `MATCH (n:%s) RETURN count(n) AS total`

	CountRelationshipsQuery = `MATCH ()-[r:%s]->() RETURN count(r) AS total`

	// Property discovery samples a bounded slice of the population, so
	// rarely-populated keys can be missed. The bound is configurable.
	SampleNodeKeysQuery = `
		MATCH (n:%s)
		WITH n LIMIT $sample
		UNWIND keys(n) AS key
		RETURN DISTINCT key
	`

	SampleRelationshipKeysQuery = `
		MATCH ()-[r:%s]->()
		WITH r LIMIT $sample
		UNWIND keys(r) AS key
		RETURN DISTINCT key
	`

	ScanNodesQuery = `
		MATCH (n:%s)%s
		RETURN id(n) AS node_id, labels(n) AS labels, properties(n) AS props
		ORDER BY id(n)
		SKIP $skip LIMIT $limit
	`

	ScanRelationshipsQuery = `
		MATCH (a)-[r:%s]->(b)%s
		RETURN id(a) AS source_id, id(b) AS target_id, properties(r) AS props
		ORDER BY id(r)
		SKIP $skip LIMIT $limit
	`

	ListIndexesQuery = `
		SHOW INDEXES
		YIELD name, entityType, labelsOrTypes, properties, type, state, owningConstraint
		WHERE entityType = 'NODE'
		RETURN name, labelsOrTypes, properties, type, state, owningConstraint
	`

	ListConstraintsQuery = `
		SHOW CONSTRAINTS
		YIELD name, type, entityType, labelsOrTypes, properties
		WHERE entityType = 'NODE'
		RETURN name, type, labelsOrTypes, properties
	`

	ListTenantLabelsQuery = `CALL db.labels() YIELD label WHERE label STARTS WITH $prefix RETURN label`

	ListTenantValuesQuery = `
		MATCH (n)
		WHERE n[$key] IS NOT NULL
		RETURN DISTINCT toString(n[$key]) AS tenant
	`
)
