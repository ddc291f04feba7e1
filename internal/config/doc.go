// Package config loads the desk-gateway YAML configuration.
//
// Values of the form ${VAR_NAME} anywhere in the file are expanded from the
// environment before parsing, so secrets like the Matrix access token can
// stay out of the file:
//
//	database:
//	  path: /var/lib/desk-gateway/desk.db
//	staff:
//	  group_id: -100
//	  main_admin_id: 900
//	matrix:
//	  homeserver: https://matrix.example.org
//	  user_id: "@deskbot:example.org"
//	  access_token: ${MATRIX_ACCESS_TOKEN}
//	  staff_room: "!abc123:example.org"
//
// Load validates required fields and returns the first problem found.
package config
