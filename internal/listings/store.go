package listings

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/taxsalemap/backend/internal/db"
)

// ChangeStatus is the result of comparing a downloaded PDF against what we
// last stored for its filename.
type ChangeStatus struct {
	Changed bool   `json:"changed"`
	IsNew   bool   `json:"isNew"`
	Hash    string `json:"hash"`
}

// GeocodingStats summarizes geocoding coverage across stored properties.
type GeocodingStats struct {
	Total        int        `json:"total"`
	Geocoded     int        `json:"geocoded"`
	SuccessRate  float64    `json:"successRate"`
	LastGeocoded *time.Time `json:"lastGeocoded"`
}

func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HasFileChanged reports whether the given bytes differ from the stored hash
// for filename. An unknown filename counts as both changed and new.
func HasFileChanged(filename string, data []byte) (ChangeStatus, error) {
	hash := FileHash(data)

	var file PDFFile
	err := db.DB.Where("filename = ?", filename).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChangeStatus{Changed: true, IsNew: true, Hash: hash}, nil
	}
	if err != nil {
		return ChangeStatus{}, err
	}
	return ChangeStatus{Changed: file.FileHash != hash, Hash: hash}, nil
}

// StorePDFFile records (or refreshes) the tracking row for a source document.
func StorePDFFile(filename, hash, sourceURL, county string) (*PDFFile, error) {
	var file PDFFile
	err := db.DB.Where("filename = ?", filename).First(&file).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		file = PDFFile{
			Filename:     filename,
			FileHash:     hash,
			SourceURL:    sourceURL,
			County:       county,
			DownloadedAt: time.Now(),
		}
		if err := db.DB.Create(&file).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		file.FileHash = hash
		file.SourceURL = sourceURL
		file.DownloadedAt = time.Now()
		if err := db.DB.Save(&file).Error; err != nil {
			return nil, err
		}
	}
	return &file, nil
}

// StoreProperties replaces the property snapshot for a PDF file. The old rows
// are dropped and the new set inserted in one transaction, so readers never
// see a half-applied listing.
func StoreProperties(pdfFileID uint, items []Listing) error {
	rows := make([]Property, 0, len(items))
	for _, l := range items {
		row := Property{
			PDFFileID:      pdfFileID,
			ParcelID:       l.ParcelID,
			Owner:          l.Owner,
			RawAddress:     l.RawAddress,
			CleanedAddress: l.Address,
			ZipCode:        l.ZipCode,
			Amount:         l.Amount,
			AmountValue:    amountValue(l.Amount),
			GeocodeStatus:  l.GeocodeStatus,
			GeocodeMessage: l.GeocodeMessage,
			HasPhoto:       l.HasPhoto,
			BidAmount:      l.BidAmount,
		}
		if l.GeocodeStatus == "" {
			row.GeocodeStatus = GeocodePending
		}
		if l.Photo != nil {
			row.PhotoPage = l.Photo.EstimatedPage
			row.PhotoHint = l.Photo.OwnerAddressHint
		}
		if l.Coordinates != nil {
			lat, lng := l.Coordinates.Lat, l.Coordinates.Lng
			now := time.Now()
			row.Latitude = &lat
			row.Longitude = &lng
			row.GeocodedAt = &now
			row.GeocodingSuccess = true
		}
		rows = append(rows, row)
	}

	return db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pdf_file_id = ?", pdfFileID).Delete(&Property{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// CountyProperties returns the snapshot from the county's most recently
// downloaded document. Older documents can coexist after an asset-URL
// rotation; their rows are never mixed in.
func CountyProperties(county string) ([]Property, error) {
	var file PDFFile
	err := db.DB.Where("county = ?", county).Order("downloaded_at DESC").First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var props []Property
	err = db.DB.Where("pdf_file_id = ?", file.ID).Order("id").Find(&props).Error
	return props, err
}

func AllProperties() ([]Property, error) {
	var props []Property
	err := db.DB.Order("id").Find(&props).Error
	return props, err
}

// Stats computes geocoding coverage over all stored properties.
func Stats() (GeocodingStats, error) {
	var stats GeocodingStats

	var total, geocoded int64
	if err := db.DB.Model(&Property{}).Count(&total).Error; err != nil {
		return stats, err
	}
	if err := db.DB.Model(&Property{}).Where("geocoding_success = ?", true).Count(&geocoded).Error; err != nil {
		return stats, err
	}
	stats.Total = int(total)
	stats.Geocoded = int(geocoded)
	if total > 0 {
		stats.SuccessRate = float64(geocoded) / float64(total) * 100
	}

	var last Property
	err := db.DB.Where("geocoded_at IS NOT NULL").Order("geocoded_at DESC").First(&last).Error
	if err == nil {
		stats.LastGeocoded = last.GeocodedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, err
	}
	return stats, nil
}

// ClearAll wipes every stored property and document row.
func ClearAll() error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Property{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&PDFFile{}).Error
	})
}

// CleanupStaleFiles removes document rows (and their properties) that have
// not been re-downloaded within maxAge. Counties rotate asset URLs between
// sale cycles, so rows for retired filenames accumulate otherwise.
func CleanupStaleFiles(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []PDFFile
	if err := db.DB.Where("downloaded_at < ?", cutoff).Find(&stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]uint, len(stale))
	for i, f := range stale {
		ids[i] = f.ID
	}
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pdf_file_id IN ?", ids).Delete(&Property{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&PDFFile{}).Error
	})
	if err != nil {
		return 0, err
	}
	log.WithField("removed", len(stale)).Info("cleaned up stale pdf files")
	return len(stale), nil
}

// amountValue parses "$4,672.58" into a float for sorting and range queries.
func amountValue(amount string) float64 {
	s := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(amount), "$"), ",", "")
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
