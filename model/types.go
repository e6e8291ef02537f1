package model

// BlockSummary describes one uploaded block.
type BlockSummary struct {
	CID         string `json:"cid"`
	Size        int    `json:"size"`
	Codec       string `json:"codec"`
	TxHash      string `json:"txHash,omitempty"`
	BlockHash   string `json:"blockHash,omitempty"`
	StoredIndex *uint64 `json:"storedIndex,omitempty"`
}

// GatewayReport is one gateway's aggregate verification outcome.
type GatewayReport struct {
	Gateway    string   `json:"gateway"`
	URL        string   `json:"url"`
	Total      int      `json:"total"`
	Resolvable int      `json:"resolvable"`
	Missing    []string `json:"missing,omitempty"`
}

// UploadRecord is the durable result of publishing one path.
type UploadRecord struct {
	Root        string          `json:"root"`
	Contenthash string          `json:"contenthash,omitempty"`
	Account     string          `json:"account"`
	Endpoint    string          `json:"endpoint"`
	TotalBytes  uint64          `json:"totalBytes"`
	Blocks      []BlockSummary  `json:"blocks"`
	Gateways    []GatewayReport `json:"gateways,omitempty"`
}

// QuotaStatus is the JSON projection of an account's remaining write quota.
type QuotaStatus struct {
	Account      string `json:"account"`
	Transactions uint64 `json:"transactions"`
	// Bytes is decimal-encoded: the ledger tracks it as a u128.
	Bytes string `json:"bytes"`
}
