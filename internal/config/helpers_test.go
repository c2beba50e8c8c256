package config

import "restore-chain/internal/database"

func databaseReplica(host string, port int) database.ReplicaConfig {
	rc := database.ReplicaConfig{Host: host, Port: port}
	rc.SetDefaults()
	return rc
}
