package listings

import (
	"github.com/apex/log"

	"github.com/taxsalemap/backend/internal/db"
)

func Init() {
	err := db.DB.AutoMigrate(&PDFFile{}, &Property{})
	if err != nil {
		log.WithError(err).Fatal("failed to migrate listings tables")
	}
}
