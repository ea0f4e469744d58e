// Package store 提供问答服务的向量索引存储层。
//
// VectorStore 以字符串 id 为键，按 id upsert，重启后数据仍然存在。
// 提供两种实现：基于 Milvus 的服务端索引和基于 SQLite 的本地索引。
package store
