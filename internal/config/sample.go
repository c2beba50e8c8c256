package config

// SampleConfig is a complete configuration template printed by the config
// command
const SampleConfig = `# restore-chain configuration file
# Save as .restore-chain.yaml in the working directory or $HOME, or pass --config.

# Database whose restore chain is resolved
database: Sales

# Availability group replicas whose msdb backup history is read.
# Backups taken on any replica are merged before resolution.
replicas:
  - name: node1
    host: sql-node1.example.com
    port: 1433
    username: restore_reader   # empty = integrated authentication
    password: ""               # prefer a config file with chmod 600
    timeout: 30s
    encrypt: "true"            # true, false, disable, strict
  - name: node2
    host: sql-node2.example.com
    instance: AG01             # named instance, resolved through SQL Browser
    username: restore_reader
    password: ""

# Resolve offline from an exported catalog instead of the replicas
# catalog_file: ./sales-backups.yaml

timeout: 5m                 # Overall timeout for catalog queries
max_concurrency: 0          # Replicas queried in parallel (0 = all)
allow_partial: false        # Resolve even if some replicas are unreachable
from_checkpoint: false      # Read only the backups based on the newest full backup

resolve:
  adjacency: exact          # exact: log.first_lsn == previous.last_lsn
                            # bracketing: the first log may span the previous last_lsn
  lower_bound_lsn: ""       # Ignore backups ending at or before this LSN
  applied_lsn: ""           # Skip backups already restored up to this LSN
                            # Quote LSNs, e.g. applied_lsn: "126000000955500001"
  device_root: ""           # Read every device from this directory or URL instead
  save_manifest: false      # Store the resolved chain as a restore manifest

retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  multiplier: 2

logging:
  level: normal             # quiet, normal, verbose, debug
  format: text              # text, json
  show_caller: false
  file: ""                  # Also append logs to this file

display:
  color_enabled: true
  theme: dark               # dark, light, high-contrast, plain
  output_format: table      # table, json, yaml, compact
  quiet: false
  show_devices: false       # List every stripe of a backup set
  table_style: default      # default, rounded, compact, grid
  max_table_width: 160

manifest:
  format: json              # json, yaml
  compression:
    algorithm: none         # none, gzip, lz4, zstd
    level: 0                # 0 = algorithm default
  encryption:
    enabled: false
    key_source: env         # env, file, passphrase
    key_env_var: RESTORE_CHAIN_MANIFEST_KEY
    key_path: ""
  storage:
    provider: local         # local, s3, azure, gcs
    prefix: manifests/
    local:
      base_path: ./manifests
    s3:
      bucket: ""
      region: ""
      endpoint: ""          # S3 compatible endpoint, e.g. MinIO
      force_path_style: false
    azure:
      account_name: ""
      account_key: ""
      container_name: ""
    gcs:
      bucket: ""
      credentials_path: ""
      project_id: ""

# Every scalar key can be set from the environment, e.g.:
#   RESTORE_CHAIN_DATABASE=Sales
#   RESTORE_CHAIN_RESOLVE_APPLIED_LSN=98000000012300001
#   RESTORE_CHAIN_MANIFEST_STORAGE_S3_BUCKET=dba-manifests
#   RESTORE_CHAIN_DISPLAY_OUTPUT_FORMAT=json
`
