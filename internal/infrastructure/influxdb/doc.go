// Package influxdb records poll history in InfluxDB v2. Writes are batched
// and asynchronous; errors surface through the SetOnError callback. The
// integration is optional and controlled by config.
package influxdb
