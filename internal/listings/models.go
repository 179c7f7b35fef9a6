package listings

import (
	"time"

	"github.com/taxsalemap/backend/internal/geocode"
	"github.com/taxsalemap/backend/internal/listings/photos"
)

// Geocode status per record. Every stored property carries exactly one.
const (
	GeocodePending  = "pending"
	GeocodeCached   = "cached"
	GeocodeResolved = "resolved"
	GeocodeFailed   = "failed"
)

// PDFFile tracks each source document we have ingested. FileHash is the
// sha256 of the raw bytes and drives change detection.
type PDFFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Filename     string    `gorm:"uniqueIndex;not null" json:"filename"`
	FileHash     string    `gorm:"not null" json:"fileHash"`
	SourceURL    string    `json:"sourceUrl"`
	County       string    `gorm:"index" json:"county"`
	DownloadedAt time.Time `json:"downloadedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Property is one parcel row from a listing snapshot. Rows are replaced
// wholesale whenever their PDF changes, so they carry no update history.
type Property struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	PDFFileID        uint       `gorm:"index;not null" json:"pdfFileId"`
	ParcelID         string     `gorm:"index;not null" json:"parcelId"`
	Owner            string     `json:"owner"`
	RawAddress       string     `json:"rawAddress"`
	CleanedAddress   string     `json:"cleanedAddress"`
	ZipCode          string     `json:"zipCode"`
	Amount           string     `json:"amount"`
	AmountValue      float64    `json:"amountValue"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	GeocodedAt       *time.Time `json:"geocodedAt"`
	GeocodingSuccess bool       `json:"geocodingSuccess"`
	GeocodeStatus    string     `json:"geocodeStatus"`
	GeocodeMessage   string     `json:"geocodeMessage"`
	HasPhoto         bool       `json:"hasPhoto"`
	PhotoPage        int        `json:"photoPage"`
	PhotoHint        string     `json:"photoHint"`
	BidAmount        string     `json:"bidAmount"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Listing is the API shape for one property. Photo carries the matched
// photo-list entry (page estimate, bid, hint) when one exists.
type Listing struct {
	ParcelID       string               `json:"parcelId"`
	Owner          string               `json:"owner"`
	Address        string               `json:"address"`
	RawAddress     string               `json:"rawAddress"`
	ZipCode        string               `json:"zipCode"`
	Amount         string               `json:"amount"`
	Coordinates    *geocode.Coordinates `json:"coordinates"`
	Geocoded       bool                 `json:"geocoded"`
	GeocodeStatus  string               `json:"geocodeStatus"`
	GeocodeMessage string               `json:"geocodeMessage,omitempty"`
	HasPhoto       bool                 `json:"hasPhoto"`
	Photo          *photos.Entry        `json:"photo,omitempty"`
	BidAmount      string               `json:"bidAmount,omitempty"`
}

func listingFromProperty(p Property) Listing {
	l := Listing{
		ParcelID:       p.ParcelID,
		Owner:          p.Owner,
		Address:        p.CleanedAddress,
		RawAddress:     p.RawAddress,
		ZipCode:        p.ZipCode,
		Amount:         p.Amount,
		Geocoded:       p.GeocodingSuccess,
		GeocodeStatus:  p.GeocodeStatus,
		GeocodeMessage: p.GeocodeMessage,
		HasPhoto:       p.HasPhoto,
		BidAmount:      p.BidAmount,
	}
	if p.Latitude != nil && p.Longitude != nil {
		l.Coordinates = &geocode.Coordinates{Lat: *p.Latitude, Lng: *p.Longitude}
	}
	if p.HasPhoto {
		l.Photo = &photos.Entry{
			ParcelID:         p.ParcelID,
			EstimatedPage:    p.PhotoPage,
			BidAmount:        p.BidAmount,
			OwnerAddressHint: p.PhotoHint,
		}
	}
	return l
}
