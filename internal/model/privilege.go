package model

// Privilege is a permission code carried in the caller's token
type Privilege struct {
	Code string `json:"code"` // e.g., "batch:split"
	Name string `json:"name"` // e.g., "Split Batch"
}

const (
	PrivBatchCreate       = "batch:create"
	PrivBatchUpdate       = "batch:update"
	PrivBatchSplit        = "batch:split"
	PrivBatchMerge        = "batch:merge"
	PrivBatchProduce      = "batch:produce"
	PrivQualityDecide     = "quality:decide"
	PrivAllocationCreate  = "allocation:create"
	PrivAllocationRelease = "allocation:release"
	PrivGenealogyLink     = "genealogy:link"
)

// DefaultPrivileges is the set of codes the ledger checks. The identity
// service provisions them; the ledger only reads them from tokens.
var DefaultPrivileges = []Privilege{
	// Batch management
	{Code: PrivBatchCreate, Name: "Create Batch"},
	{Code: PrivBatchUpdate, Name: "Update Batch Status / Quantity"},
	{Code: PrivBatchSplit, Name: "Split Batch"},
	{Code: PrivBatchMerge, Name: "Merge Batches"},
	{Code: PrivBatchProduce, Name: "Record Production"},
	// Quality
	{Code: PrivQualityDecide, Name: "Approve / Reject Batch"},
	// Allocation
	{Code: PrivAllocationCreate, Name: "Allocate Batch"},
	{Code: PrivAllocationRelease, Name: "Release Allocation"},
	// Genealogy
	{Code: PrivGenealogyLink, Name: "Link Batches"},
}
