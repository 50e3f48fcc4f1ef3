/*
Package mvbtree implements a transactional key-value store over an in-memory
multi-version B-tree. Keys are 32-bit integers and values are strings; every
key holds a chain of versions stamped with the transactions that created and
closed them, so readers see a consistent snapshot while writers proceed.

Durability comes from a write-ahead log of client commands and periodic
checkpoints of the committed tree; see the db package.
*/
package mvbtree
