package dto

import "naa-posts/models"

// PostListDTO is the list response: one page of posts and the filtered total.
type PostListDTO struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total" example:"12"`
}

// PostRequestDTO documents the accepted create/update fields. Requests may also be
// multipart forms using the same names, with coverImage and galleryImages as files.
type PostRequestDTO struct {
	Title                 string   `json:"title" example:"Open day at the academy"`
	Slug                  string   `json:"slug" example:"open-day"`
	Category              string   `json:"category" enums:"News,Announcement" example:"News"`
	HTMLContent           string   `json:"htmlContent" example:"<p>hi</p>"`
	CoverImage            string   `json:"coverImage" example:"data:image/png;base64,iVBORw0KGgo..."`
	ExistingCoverImage    string   `json:"existingCoverImage" example:"https://utfs.io/f/abc"`
	GalleryImages         []string `json:"galleryImages"`
	ExistingGalleryImages string   `json:"existingGalleryImages" example:"[\"/files/a.png\"]"`
	Language              string   `json:"language" example:"AZ"`
	Status                string   `json:"status" example:"Active"`
	PublishStatus         string   `json:"publishStatus" example:"Publish"`
	Author                string   `json:"author" example:"admin"`
}

type UploadResponseDTO struct {
	Success  bool   `json:"success" example:"true"`
	URL      string `json:"url" example:"/files/upload-1714555800000-a1b2c3d.png"`
	Filename string `json:"filename" example:"upload-1714555800000-a1b2c3d.png"`
}
