// Package config provides configuration parsing and validation for the
// index storage layer.
//
// # Configuration File
//
// Configuration is loaded from a YAML file:
//
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
//
//	storage:
//	  dataDir: /var/lib/oba/index
//	  pageSize: 4096
//	  syncOnWrite: false
//	  countScanLimit: 1000
//
//	indexes:
//	  - attribute: uid
//	    backend: disk
//	    matching: caseIgnoreMatch
//	  - attribute: employeeNumber
//	    backend: memory
//	    matching: integerMatch
//
// # Environment Variables
//
// Values may reference the environment with ${VAR} or ${VAR:-default}:
//
//	storage:
//	  dataDir: ${OBA_INDEX_DIR:-/var/lib/oba/index}
//
// # Loading and Validation
//
//	cfg, err := config.LoadConfig("/etc/oba/index.yaml")
//	if err != nil {
//	    return err
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    for _, e := range errs {
//	        log.Println(e)
//	    }
//	}
//
// Missing values take the defaults of DefaultConfig. An indexes list in the
// file replaces the default indexes.
package config
