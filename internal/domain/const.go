package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// Entity id separator used by composite ids
	ENTITY_ID_SEPARATOR = ":"
)
