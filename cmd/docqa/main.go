// Package main is the entry point for the Document QA API.
//
//	@title						Document QA API
//	@version					1.0.0
//	@description				Upload PDFs and images, then ask questions about them with retrieval and entity highlighting.
//
//	@contact.name				kart-io
//	@contact.url				https://github.com/kart-io/docqa
//
//	@license.name				Apache 2.0
//	@license.url				http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host						localhost:8000
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Example: "Bearer {token}"
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/docqa/cmd/docqa/app"
)

func main() {
	app.NewApp().Run()
}
