// Package kafka binds a built table to its Kafka cluster.
//
// A Writer encodes rows with the table codec and publishes them to the first
// declared topic. A Reader consumes every partition of every declared topic,
// decodes each message with the same codec and hands the rows to a handler.
//
// Broker settings beyond bootstrap.servers come from the nested "kafka"
// table property:
//
//	kafka:
//	  version: 2.1.1
//	  clientID: orders-loader
//	  offset: oldest          # or newest (default)
//	  connectTimeout: 30s
//	  sasl: {enable: true, username: u, password: p, algorithm: sha512}
//	  tls: {enable: true, caFile: /etc/kafka/ca.pem}
//
// Supported SASL algorithms are sha256 and sha512 (SCRAM) and plain.
package kafka
